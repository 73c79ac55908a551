package utils

import (
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

// InboxConfig describes the shared lead inbox polled by the inbox worker.
type InboxConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	UseTLS   bool
}

// InboundMessage is one parsed inbox message: envelope fields plus the first
// text part of the body.
type InboundMessage struct {
	MessageID  string
	FromName   string
	FromEmail  string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// FetchUnseenMessages connects to the inbox, fetches every unseen message
// without marking it read, and returns the parsed results. Deduplication
// against already-ingested messages is the caller's job.
func FetchUnseenMessages(cfg InboxConfig) ([]InboundMessage, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var imapClient *client.Client
	var err error
	if cfg.UseTLS {
		imapClient, err = client.DialTLS(addr, &tls.Config{ServerName: cfg.Host})
	} else {
		imapClient, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP server: %w", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(cfg.Username, cfg.Password); err != nil {
		return nil, fmt.Errorf("IMAP login: %w", err)
	}

	mailbox := cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := imapClient.Select(mailbox, true); err != nil {
		return nil, fmt.Errorf("selecting mailbox %s: %w", mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var result []InboundMessage
	for msg := range messages {
		parsed, err := parseMessage(msg, section)
		if err != nil {
			continue
		}
		result = append(result, parsed)
	}

	if err := <-done; err != nil {
		return result, fmt.Errorf("fetching messages: %w", err)
	}
	return result, nil
}

func parseMessage(msg *imap.Message, section *imap.BodySectionName) (InboundMessage, error) {
	var parsed InboundMessage

	env := msg.Envelope
	if env == nil || len(env.From) == 0 {
		return parsed, fmt.Errorf("message %d has no envelope", msg.SeqNum)
	}

	from := env.From[0]
	parsed.FromName = from.PersonalName
	parsed.FromEmail = fmt.Sprintf("%s@%s", from.MailboxName, from.HostName)
	parsed.Subject = env.Subject
	parsed.MessageID = env.MessageId
	parsed.ReceivedAt = env.Date
	if parsed.ReceivedAt.IsZero() {
		parsed.ReceivedAt = time.Now()
	}

	if body := msg.GetBody(section); body != nil {
		parsed.Body = readTextBody(body)
	}
	return parsed, nil
}

// readTextBody returns the first inline text part of the message.
func readTextBody(r io.Reader) string {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}
		if _, ok := part.Header.(*mail.InlineHeader); ok {
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return ""
			}
			return string(data)
		}
	}
}

// ExtractLabeledField scans message body lines for a "Label: value" pair,
// the format used by portal notification emails. Matching is
// case-insensitive on the label.
func ExtractLabeledField(body string, labels ...string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, label := range labels {
			prefix := label + ":"
			if len(trimmed) > len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
				return strings.TrimSpace(trimmed[len(prefix):])
			}
		}
	}
	return ""
}

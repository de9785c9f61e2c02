package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/vedran77/dmcore/internal/domain"
)

const previewLength = 140

type rendered struct {
	Subject string
	Text    string
	HTML    string
}

var digestTmpl = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <p>Hi {{.Name}},</p>
  <p>You have <strong>{{.Count}}</strong> unread {{if eq .Count 1}}message{{else}}messages{{end}} from:</p>
  <ul>
  {{- range .Senders}}
    <li>{{.}}</li>
  {{- end}}
  </ul>
  {{- if .Link}}
  <p><a href="{{.Link}}">Open your inbox</a></p>
  {{- end}}
</body>
</html>`))

var contactTmpl = template.Must(template.New("contact").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <p>Hi {{.Recipient}},</p>
  <p><strong>{{.Sender}}</strong> sent you a message:</p>
  <blockquote>{{.Preview}}</blockquote>
  {{- if .Link}}
  <p><a href="{{.Link}}">Reply</a></p>
  {{- end}}
</body>
</html>`))

func renderDigest(s domain.UnreadNotificationSummary, inboxURL string) (rendered, error) {
	data := struct {
		Name    string
		Count   int
		Senders []string
		Link    string
	}{s.Recipient.Name(), s.UnreadCount, s.SenderNames, inboxURL}

	var html bytes.Buffer
	if err := digestTmpl.Execute(&html, data); err != nil {
		return rendered{}, fmt.Errorf("render digest: %w", err)
	}

	noun := "messages"
	if s.UnreadCount == 1 {
		noun = "message"
	}
	text := fmt.Sprintf("Hi %s,\n\nYou have %d unread %s from: %s.\n",
		data.Name, s.UnreadCount, noun, strings.Join(s.SenderNames, ", "))
	if inboxURL != "" {
		text += "\nOpen your inbox: " + inboxURL + "\n"
	}

	return rendered{
		Subject: fmt.Sprintf("You have %d unread %s", s.UnreadCount, noun),
		Text:    text,
		HTML:    html.String(),
	}, nil
}

func renderContactRequest(n domain.ContactRequestNotification) (rendered, error) {
	data := struct {
		Recipient string
		Sender    string
		Preview   string
		Link      string
	}{n.Recipient.Name(), n.Sender.Name(), preview(n.Preview), n.ConversationURL}

	var html bytes.Buffer
	if err := contactTmpl.Execute(&html, data); err != nil {
		return rendered{}, fmt.Errorf("render contact request: %w", err)
	}

	text := fmt.Sprintf("Hi %s,\n\n%s sent you a message:\n\n%s\n", data.Recipient, data.Sender, data.Preview)
	if data.Link != "" {
		text += "\nReply: " + data.Link + "\n"
	}

	return rendered{
		Subject: data.Sender + " sent you a message",
		Text:    text,
		HTML:    html.String(),
	}, nil
}

func preview(content string) string {
	r := []rune(strings.TrimSpace(content))
	if len(r) <= previewLength {
		return string(r)
	}
	return string(r[:previewLength]) + "…"
}

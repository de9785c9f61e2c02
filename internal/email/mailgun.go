package email

import (
	"context"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/config"
	"github.com/vedran77/dmcore/internal/domain"
)

const sendTimeout = 10 * time.Second

type Mailgun struct {
	mg      mailgun.Mailgun
	from    string
	baseURL string
	log     *zap.Logger
}

func NewMailgun(cfg *config.Config, log *zap.Logger) *Mailgun {
	return &Mailgun{
		mg:      mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey),
		from:    cfg.EmailFrom,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		log:     log.With(zap.String("component", "email.mailgun")),
	}
}

// SetAPIBase points the client at another Mailgun endpoint, e.g. the EU region.
func (m *Mailgun) SetAPIBase(url string) {
	m.mg.SetAPIBase(url)
}

func (m *Mailgun) SendUnreadDigest(ctx context.Context, s domain.UnreadNotificationSummary) (bool, error) {
	inbox := ""
	if m.baseURL != "" {
		inbox = m.baseURL + "/messages"
	}
	msg, err := renderDigest(s, inbox)
	if err != nil {
		return false, err
	}
	return m.send(ctx, s.Recipient, msg)
}

func (m *Mailgun) SendContactRequest(ctx context.Context, n domain.ContactRequestNotification) (bool, error) {
	msg, err := renderContactRequest(n)
	if err != nil {
		return false, err
	}
	return m.send(ctx, n.Recipient, msg)
}

func (m *Mailgun) send(ctx context.Context, to domain.UserSummary, r rendered) (bool, error) {
	if to.Email == "" {
		return false, ErrNoRecipientAddress
	}

	message := m.mg.NewMessage(m.from, r.Subject, r.Text, to.Email)
	message.SetHtml(r.HTML)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return false, errors.Wrap(err, "mailgun.Send")
	}
	m.log.Debug("email accepted", zap.String("recipient_id", to.ID.String()), zap.String("mailgun_id", id))
	return true, nil
}

var _ Client = (*Mailgun)(nil)

package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/rodasmf/loyalty/internal/notifier/config"
)

var ErrNoRecipient = errors.New("event has no recipient address")

// mailer отправляет письма через HTTP-API почтового сервиса
type mailer struct {
	cfg    config.Config
	client *resty.Client
}

func NewMailer(cfg config.Config) Notifier {
	return &mailer{
		cfg:    cfg,
		client: resty.New().SetBaseURL(cfg.MailAPIURL),
	}
}

// JSON запрос почтового API
type sendMailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *mailer) Notify(ctx context.Context, event Event) error {
	if event.To == "" {
		return ErrNoRecipient
	}

	subject, body, err := subjectAndBody(event)
	if err != nil {
		return err
	}

	from := m.cfg.MailFrom
	if m.cfg.MailFromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.MailFromName, m.cfg.MailFrom)
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+m.cfg.MailAPIKey).
		SetHeader("Idempotency-Key", event.ID).
		SetBody(sendMailRequest{
			From:    from,
			To:      []string{event.To},
			Subject: subject,
			HTML:    body,
		}).
		Post("/emails")
	if err != nil {
		return err
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("mail request status: %d", resp.StatusCode())
	}
}

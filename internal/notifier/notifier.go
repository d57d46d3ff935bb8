// Package notifier отправляет транзакционные письма клиентам.
// Доставка "выстрелил и забыл": ошибки логируются и никогда не
// прерывают операции начисления/списания.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rodasmf/loyalty/internal/notifier/config"
	"go.uber.org/zap"
)

const (
	KindPointsAssigned    = "points_assigned"
	KindRedemptionReceipt = "redemption_receipt"
	KindPointsExpiring    = "points_expiring"
)

type Event struct {
	ID   string
	Kind string

	To         string
	ClientName string

	// начисление
	PointsAssigned int
	PurchaseAmount int
	Balance        int
	ExpiresOn      time.Time

	// списание
	Concept    string
	PointsUsed int
	Date       time.Time

	// сгорающие лоты
	Expiring []ExpiringItem
}

type ExpiringItem struct {
	ExpiresOn time.Time
	Points    int
}

// NewEvent заполняет идентификатор события
func NewEvent(kind string, to string, name string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		To:         to,
		ClientName: name,
	}
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NewNotifier возвращает почтовый нотификатор; без адреса почтового API —
// заглушку, пишущую события в лог
func NewNotifier(cfg config.Config, zaplog *zap.Logger) Notifier {
	if cfg.MailAPIURL == "" {
		return &logNotifier{zaplog: zaplog}
	}
	return NewMailer(cfg)
}

type logNotifier struct {
	zaplog *zap.Logger
}

func (n *logNotifier) Notify(_ context.Context, event Event) error {
	n.zaplog.Info("notification (mail disabled)",
		zap.String("id", event.ID),
		zap.String("kind", event.Kind),
		zap.String("to", event.To),
	)
	return nil
}

const dateLayout = "02/01/2006"

// subjectAndBody собирает тему и HTML-тело письма по образцу исходных
// шаблонов программы лояльности
func subjectAndBody(event Event) (string, string, error) {
	var b strings.Builder
	b.WriteString(`<div style="font-family:Arial,Helvetica,sans-serif">`)

	var subject string
	switch event.Kind {
	case KindPointsAssigned:
		subject = "Puntos acreditados - Programa de Fidelización"
		fmt.Fprintf(&b, "<h2>¡Puntos acreditados!</h2>")
		fmt.Fprintf(&b, "<p>Hola <b>%s</b>,</p>", event.ClientName)
		fmt.Fprintf(&b, "<p>Te acreditamos <b>%d puntos</b> por tu compra de <b>Gs. %d</b>.</p>",
			event.PointsAssigned, event.PurchaseAmount)
		fmt.Fprintf(&b, "<p><b>Vencimiento:</b> %s</p>", event.ExpiresOn.Format(dateLayout))
		fmt.Fprintf(&b, "<p><b>Saldo actual:</b> %d puntos</p>", event.Balance)
		b.WriteString("<hr/><small>Gracias por tu preferencia.</small>")
	case KindRedemptionReceipt:
		subject = "Comprobante de Canje de Puntos"
		fmt.Fprintf(&b, "<h3>¡Hola %s!</h3>", event.ClientName)
		b.WriteString("<p>Tu canje se ha realizado correctamente.</p><ul>")
		fmt.Fprintf(&b, "<li><b>Concepto:</b> %s</li>", event.Concept)
		fmt.Fprintf(&b, "<li><b>Puntos utilizados:</b> %d</li>", event.PointsUsed)
		fmt.Fprintf(&b, "<li><b>Fecha:</b> %s</li>", event.Date.Format(dateLayout))
		b.WriteString("</ul><p>Gracias por participar en nuestro programa de fidelización.</p>")
	case KindPointsExpiring:
		subject = "Aviso: puntos próximos a vencer"
		fmt.Fprintf(&b, "<h3>¡Atención, %s!</h3>", event.ClientName)
		b.WriteString("<p>Tienes puntos próximos a vencer:</p><p>")
		total := 0
		for i, item := range event.Expiring {
			if i > 0 {
				b.WriteString("<br>")
			}
			fmt.Fprintf(&b, "- %d puntos vencen el %s", item.Points, item.ExpiresOn.Format(dateLayout))
			total += item.Points
		}
		fmt.Fprintf(&b, "</p><p><b>Total por vencer:</b> %d puntos.</p>", total)
		b.WriteString("<hr/><small>Usa tus beneficios antes del vencimiento.</small>")
	default:
		return "", "", fmt.Errorf("unknown event kind %q", event.Kind)
	}

	b.WriteString("</div>")
	return subject, b.String(), nil
}

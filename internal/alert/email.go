package alert

import (
	"allocation-service/internal/checkout"
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	gopkgmail "gopkg.in/gomail.v2"
)

type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	To           []string
}

type mailSender interface {
	DialAndSend(m ...*gopkgmail.Message) error
}

var htmlBody = template.Must(template.New("paid_unfulfilled").Parse(`<h2>Оплаченный заказ не исполнен</h2>
<p>Order token: <b>{{.OrderToken}}</b></p>
<p>Payment reference: {{.PaymentReference}}</p>
<p>Failure: {{.FailureReason}}</p>
<ul>{{range .Lines}}<li>{{.SKU}} x{{.Quantity}} @ {{.WarehouseID}} ({{.Final}})</li>{{end}}</ul>`))

// EmailAlerter mails operators when a payment was captured for an order that
// could not be fulfilled.
type EmailAlerter struct {
	cfg    Config
	sender mailSender
}

func NewEmailAlerter(cfg Config) *EmailAlerter {
	d := gopkgmail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	d.SSL = true
	return &EmailAlerter{cfg: cfg, sender: d}
}

func (a *EmailAlerter) PaidUnfulfilled(ctx context.Context, at checkout.Attempt) error {
	if len(a.cfg.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := htmlBody.Execute(&buf, at); err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	m := gopkgmail.NewMessage()
	m.SetHeader("From", a.cfg.SMTPFrom)
	m.SetHeader("To", a.cfg.To...)
	m.SetHeader("Subject", "[allocation] paid but unfulfilled: "+at.OrderToken)
	m.SetBody("text/plain", plainBody(at))
	m.AddAlternative("text/html", buf.String())
	return a.sender.DialAndSend(m)
}

func plainBody(at checkout.Attempt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s was charged (payment %s) but could not be fulfilled: %s\n",
		at.OrderToken, at.PaymentReference, at.FailureReason)
	for _, l := range at.Lines {
		fmt.Fprintf(&b, "- %s x%d @ %s (%s)\n", l.SKU, l.Quantity, l.WarehouseID, l.Final)
	}
	return b.String()
}

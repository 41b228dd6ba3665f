package alert

import (
	"allocation-service/internal/checkout"
	"allocation-service/internal/models"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	gopkgmail "gopkg.in/gomail.v2"
)

type fakeSender struct {
	sent []*gopkgmail.Message
}

func (s *fakeSender) DialAndSend(m ...*gopkgmail.Message) error {
	s.sent = append(s.sent, m...)
	return nil
}

func TestEmailAlerter_PaidUnfulfilled(t *testing.T) {
	s := &fakeSender{}
	a := &EmailAlerter{cfg: Config{SMTPFrom: "noreply@shop.test", To: []string{"ops@shop.test"}}, sender: s}

	at := checkout.Attempt{
		OrderToken:       "order-42",
		PaymentReference: "pay_42",
		FailureReason:    checkout.ReasonFulfillment,
		Lines: []checkout.LineStatus{{
			SKU:         models.NewSKU(uuid.MustParse("11111111-1111-1111-1111-111111111111"), nil),
			Quantity:    2,
			WarehouseID: "local-1",
			Final:       models.ReservationReleased,
		}},
	}
	if err := a.PaidUnfulfilled(context.Background(), at); err != nil {
		t.Fatalf("PaidUnfulfilled: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(s.sent))
	}
	m := s.sent[0]
	if got := m.GetHeader("Subject"); len(got) != 1 || !strings.Contains(got[0], "order-42") {
		t.Fatalf("subject = %v", got)
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !strings.Contains(buf.String(), "pay_42") {
		t.Fatalf("body does not mention payment reference")
	}
}

func TestEmailAlerter_NoRecipients(t *testing.T) {
	s := &fakeSender{}
	a := &EmailAlerter{cfg: Config{}, sender: s}
	if err := a.PaidUnfulfilled(context.Background(), checkout.Attempt{OrderToken: "x"}); err != nil {
		t.Fatalf("PaidUnfulfilled: %v", err)
	}
	if len(s.sent) != 0 {
		t.Fatalf("no mail expected without recipients")
	}
}

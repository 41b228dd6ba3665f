package checkout

import (
	"allocation-service/internal/allocation"
	"allocation-service/internal/models"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateValidating      State = "VALIDATING_DELIVERY"
	StateReserving       State = "RESERVING_STOCK"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StateConfirming      State = "CONFIRMING"
	StateReleasing       State = "RELEASING"
	StateDone            State = "DONE"
	StateFailed          State = "FAILED"
)

func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailure || o == OutcomeTimeout
}

// PaymentSignal is the only input that moves an attempt out of AWAITING_PAYMENT.
type PaymentSignal struct {
	OrderToken       string  `json:"order_token"`
	Outcome          Outcome `json:"outcome"`
	PaymentReference string  `json:"payment_reference,omitempty"`
}

type Request struct {
	OrderToken string
	Pincode    string
	Lines      []allocation.Line
}

// Failure reasons recorded on FAILED attempts.
const (
	ReasonNotDeliverable      = "not_deliverable"
	ReasonReservationRejected = "reservation_rejected"
	ReasonStorage             = "storage_error"
	ReasonPaymentDeclined     = "payment_declined"
	ReasonPaymentTimeout      = "payment_timeout"
	ReasonFulfillment         = "fulfillment_failed"
)

type LineStatus struct {
	SKU           models.SKU              `json:"sku"`
	Quantity      int64                   `json:"quantity"`
	WarehouseID   string                  `json:"warehouse_id,omitempty"`
	FallbackUsed  bool                    `json:"fallback_used"`
	Reason        allocation.Reason       `json:"reason,omitempty"`
	ReservationID *uuid.UUID              `json:"reservation_id,omitempty"`
	Reserved      bool                    `json:"reserved"`
	Final         models.ReservationState `json:"final_state,omitempty"`
}

// Attempt is a snapshot of one checkout run. Charged and PaidUnfulfilled
// separate "nothing was charged" from "paid but not fulfilled".
type Attempt struct {
	OrderToken       string       `json:"order_token"`
	Pincode          string       `json:"pincode"`
	State            State        `json:"state"`
	Lines            []LineStatus `json:"lines"`
	Quote            *Quote       `json:"quote,omitempty"`
	Charged          bool         `json:"charged"`
	PaidUnfulfilled  bool         `json:"paid_unfulfilled"`
	PaymentReference string       `json:"payment_reference,omitempty"`
	FailureReason    string       `json:"failure_reason,omitempty"`
	History          []State      `json:"history"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	Deadline         time.Time    `json:"payment_deadline,omitempty"`
}

func (a Attempt) AllReserved() bool {
	if len(a.Lines) == 0 {
		return false
	}
	for _, l := range a.Lines {
		if !l.Reserved {
			return false
		}
	}
	return true
}

func (a Attempt) ReservationIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.Lines))
	for _, l := range a.Lines {
		if l.ReservationID != nil {
			ids = append(ids, *l.ReservationID)
		}
	}
	return ids
}

func (a Attempt) clone() Attempt {
	out := a
	out.Lines = append([]LineStatus(nil), a.Lines...)
	out.History = append([]State(nil), a.History...)
	if a.Quote != nil {
		q := *a.Quote
		out.Quote = &q
	}
	return out
}

// Assignment names one confirmed line of an order.
type Assignment struct {
	SKU         models.SKU
	WarehouseID string
	Quantity    int64
}

type AssignmentResult struct {
	Assignment
	ReservationID *uuid.UUID
	Deducted      bool
}

type ConfirmResult struct {
	OrderToken  string
	AllDeducted bool
	Results     []AssignmentResult
}

// Event is what the orchestrator reports to the outside on every terminal
// or alert-worthy transition.
type Event struct {
	Type             string      `json:"type"`
	OrderToken       string      `json:"order_token"`
	State            State       `json:"state"`
	Charged          bool        `json:"charged"`
	PaidUnfulfilled  bool        `json:"paid_unfulfilled"`
	PaymentReference string      `json:"payment_reference,omitempty"`
	FailureReason    string      `json:"failure_reason,omitempty"`
	ReservationIDs   []uuid.UUID `json:"reservation_ids,omitempty"`
	At               time.Time   `json:"at"`
}

const (
	EventReserved        = "checkout.reserved"
	EventCompleted       = "checkout.completed"
	EventFailed          = "checkout.failed"
	EventPaidUnfulfilled = "checkout.paid_unfulfilled"
)

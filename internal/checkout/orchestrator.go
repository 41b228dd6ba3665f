package checkout

import (
	"allocation-service/internal/allocation"
	"allocation-service/internal/apperr"
	"allocation-service/internal/models"
	"allocation-service/internal/pincode"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Allocator interface {
	CheckCartAvailability(ctx context.Context, lines []allocation.Line, code string) (allocation.CartResult, error)
}

type Reservations interface {
	Reserve(ctx context.Context, orderToken string, sku models.SKU, warehouseID string, quantity int64) (*models.Reservation, error)
	Release(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ConfirmDeduction(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindByOrderToken(ctx context.Context, orderToken string) ([]models.Reservation, error)
}

type Publisher interface {
	PublishCheckout(ctx context.Context, ev Event) error
}

type Alerter interface {
	PaidUnfulfilled(ctx context.Context, a Attempt) error
}

type Config struct {
	PaymentTimeout time.Duration
	NotifyTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{PaymentTimeout: 15 * time.Minute, NotifyTimeout: 5 * time.Second}
}

type tracked struct {
	mu      sync.Mutex
	attempt Attempt
	signals chan PaymentSignal
	done    chan struct{}
}

// Orchestrator runs checkout attempts as explicit state machines. The only
// suspension point is AWAITING_PAYMENT, which ends on a PaymentSignal or on
// the payment timeout.
type Orchestrator struct {
	alloc   Allocator
	res     Reservations
	catalog Catalog
	pub     Publisher
	alerter Alerter
	cfg     Config
	log     *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	attempts map[string]*tracked
	closing  chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewOrchestrator accepts nil catalog, publisher and alerter.
func NewOrchestrator(alloc Allocator, res Reservations, catalog Catalog, pub Publisher, alerter Alerter, cfg Config, log *zap.Logger) *Orchestrator {
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = DefaultConfig().PaymentTimeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultConfig().NotifyTimeout
	}
	return &Orchestrator{
		alloc:    alloc,
		res:      res,
		catalog:  catalog,
		pub:      pub,
		alerter:  alerter,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		attempts: map[string]*tracked{},
		closing:  make(chan struct{}),
	}
}

func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// Begin validates delivery, reserves every line in cart order and leaves the
// attempt waiting for payment. Business failures come back as a FAILED
// attempt with a nil error.
func (o *Orchestrator) Begin(ctx context.Context, req Request) (Attempt, error) {
	req.OrderToken = strings.TrimSpace(req.OrderToken)
	if req.OrderToken == "" {
		return Attempt{}, apperr.Invalid("order_token", "required")
	}
	if len(req.Lines) == 0 {
		return Attempt{}, apperr.Invalid("items", "cart is empty")
	}
	if err := pincode.Validate(req.Pincode); err != nil {
		return Attempt{}, err
	}
	for _, l := range req.Lines {
		if l.SKU.ProductID == uuid.Nil {
			return Attempt{}, apperr.Invalid("sku_id", "required")
		}
		if l.Quantity <= 0 {
			return Attempt{}, apperr.Invalid("quantity", "must be greater than zero")
		}
	}

	t, prev, err := o.track(req)
	if err != nil {
		return Attempt{}, err
	}
	log := o.log.With(zap.String("order_token", req.OrderToken))

	// VALIDATING_DELIVERY: always against live stock, never the delivery cache.
	cart, err := o.alloc.CheckCartAvailability(ctx, req.Lines, req.Pincode)
	if err != nil {
		if apperr.IsValidation(err) {
			o.untrack(req.OrderToken, t, prev)
			return Attempt{}, err
		}
		log.Error("delivery validation failed", zap.Error(err))
		o.finish(t, StateFailed, ReasonStorage)
		return o.snapshot(t), apperr.Storage("validate delivery", err)
	}

	t.mu.Lock()
	for i, r := range cart.Lines {
		ls := LineStatus{SKU: req.Lines[i].SKU, Quantity: req.Lines[i].Quantity, FallbackUsed: r.FallbackUsed, Reason: r.Reason}
		if r.Warehouse != nil {
			ls.WarehouseID = r.Warehouse.ID
		}
		t.attempt.Lines = append(t.attempt.Lines, ls)
	}
	t.mu.Unlock()

	if !cart.AllDeliverable() {
		log.Warn("checkout blocked: cart not deliverable", zap.Int("undeliverable", len(cart.Undeliverable)))
		o.finish(t, StateFailed, ReasonNotDeliverable)
		return o.snapshot(t), nil
	}

	if o.catalog != nil {
		q, err := BuildQuote(ctx, o.catalog, req.Lines)
		if err != nil {
			log.Warn("quote unavailable", zap.Error(err))
		} else {
			t.mu.Lock()
			t.attempt.Quote = &q
			t.mu.Unlock()
		}
	}

	// RESERVING_STOCK: every line is tried so the caller sees per-line results.
	o.advance(t, StateReserving)
	rejected := 0
	var reserveErr error
	for i, l := range req.Lines {
		wh := o.lineWarehouse(t, i)
		r, err := o.res.Reserve(ctx, req.OrderToken, l.SKU, wh, l.Quantity)
		if errors.Is(err, apperr.ErrReservationRejected) {
			rejected++
			o.updateLine(t, i, func(ls *LineStatus) { ls.Reason = allocation.ReasonInsufficientStock })
			continue
		}
		if err != nil {
			reserveErr = err
			break
		}
		id := r.ID
		o.updateLine(t, i, func(ls *LineStatus) {
			ls.ReservationID = &id
			ls.Reserved = true
			ls.Final = r.State
		})
	}

	if reserveErr != nil || rejected > 0 {
		o.releaseAll(context.WithoutCancel(ctx), t)
		if reserveErr != nil {
			log.Error("reservation aborted", zap.Error(reserveErr))
			o.finish(t, StateFailed, ReasonStorage)
			return o.snapshot(t), reserveErr
		}
		log.Info("reservation rejected, attempt rolled back", zap.Int("rejected_lines", rejected))
		o.finish(t, StateFailed, ReasonReservationRejected)
		return o.snapshot(t), nil
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.releaseAll(context.WithoutCancel(ctx), t)
		o.finish(t, StateFailed, ReasonStorage)
		return o.snapshot(t), ErrShuttingDown
	}
	o.wg.Add(1)
	o.mu.Unlock()

	t.mu.Lock()
	t.attempt.Deadline = o.now().Add(o.cfg.PaymentTimeout)
	t.mu.Unlock()
	o.advance(t, StateAwaitingPayment)
	snap := o.snapshot(t)
	o.publish(eventFor(EventReserved, snap, o.now()))

	go o.await(t)
	return snap, nil
}

// Signal hands a payment outcome to the attempt. Signals after the first one
// are ignored, except that a success arriving for an attempt that already
// failed marks it paid-unfulfilled.
func (o *Orchestrator) Signal(ctx context.Context, sig PaymentSignal) (Attempt, error) {
	sig.OrderToken = strings.TrimSpace(sig.OrderToken)
	if sig.OrderToken == "" {
		return Attempt{}, apperr.Invalid("order_token", "required")
	}
	if !sig.Outcome.Valid() {
		return Attempt{}, apperr.Invalid("outcome", "must be success, failure or timeout")
	}
	t := o.lookup(sig.OrderToken)
	if t == nil {
		return Attempt{}, ErrAttemptNotFound
	}

	t.mu.Lock()
	if t.attempt.State.Terminal() {
		late := sig.Outcome == OutcomeSuccess && t.attempt.State == StateFailed && !t.attempt.Charged
		if late {
			t.attempt.Charged = true
			t.attempt.PaidUnfulfilled = true
			t.attempt.PaymentReference = sig.PaymentReference
			t.attempt.UpdatedAt = o.now()
		}
		snap := t.attempt.clone()
		t.mu.Unlock()
		if late {
			o.reportPaidUnfulfilled(ctx, snap)
		} else {
			o.log.Debug("duplicate payment signal ignored",
				zap.String("order_token", sig.OrderToken),
				zap.String("outcome", string(sig.Outcome)),
			)
		}
		return snap, nil
	}
	select {
	case t.signals <- sig:
	default:
		o.log.Debug("payment signal already pending", zap.String("order_token", sig.OrderToken))
	}
	snap := t.attempt.clone()
	t.mu.Unlock()
	return snap, nil
}

// Wait blocks until the attempt reaches DONE or FAILED.
func (o *Orchestrator) Wait(ctx context.Context, orderToken string) (Attempt, error) {
	t := o.lookup(orderToken)
	if t == nil {
		return Attempt{}, ErrAttemptNotFound
	}
	select {
	case <-t.done:
		return o.snapshot(t), nil
	case <-ctx.Done():
		return o.snapshot(t), ctx.Err()
	}
}

func (o *Orchestrator) Get(orderToken string) (Attempt, error) {
	t := o.lookup(orderToken)
	if t == nil {
		return Attempt{}, ErrAttemptNotFound
	}
	return o.snapshot(t), nil
}

// ConfirmOrder deducts stock for the given assignments. A tracked attempt that
// is still waiting gets a success signal; otherwise held reservations under
// the order token are matched to assignments and confirmed directly.
func (o *Orchestrator) ConfirmOrder(ctx context.Context, orderToken string, assignments []Assignment) (ConfirmResult, error) {
	orderToken = strings.TrimSpace(orderToken)
	if orderToken == "" {
		return ConfirmResult{}, apperr.Invalid("order_token", "required")
	}
	if len(assignments) == 0 {
		return ConfirmResult{}, apperr.Invalid("warehouse_assignments", "required")
	}
	for _, a := range assignments {
		switch {
		case a.SKU.ProductID == uuid.Nil:
			return ConfirmResult{}, apperr.Invalid("product_id", "required")
		case a.WarehouseID == "":
			return ConfirmResult{}, apperr.Invalid("warehouse_id", "required")
		case a.Quantity <= 0:
			return ConfirmResult{}, apperr.Invalid("quantity", "must be greater than zero")
		}
	}

	if t := o.lookup(orderToken); t != nil && !o.snapshot(t).State.Terminal() {
		if _, err := o.Signal(ctx, PaymentSignal{OrderToken: orderToken, Outcome: OutcomeSuccess}); err != nil {
			return ConfirmResult{}, err
		}
		if _, err := o.Wait(ctx, orderToken); err != nil {
			return ConfirmResult{}, err
		}
	}

	list, err := o.res.FindByOrderToken(ctx, orderToken)
	if err != nil {
		return ConfirmResult{}, err
	}

	out := ConfirmResult{OrderToken: orderToken, AllDeducted: true}
	used := make(map[uuid.UUID]bool, len(list))
	for _, a := range assignments {
		ar := AssignmentResult{Assignment: a}
		for i := range list {
			r := list[i]
			if used[r.ID] || r.SKUID != a.SKU.ID() || r.WarehouseID != a.WarehouseID || r.Quantity != a.Quantity {
				continue
			}
			if r.State == models.ReservationReleased {
				continue
			}
			used[r.ID] = true
			id := r.ID
			ar.ReservationID = &id
			if r.State == models.ReservationHeld {
				got, err := o.res.ConfirmDeduction(ctx, r.ID)
				if err != nil {
					return ConfirmResult{}, err
				}
				ar.Deducted = got.State == models.ReservationConfirmed
			} else {
				ar.Deducted = true
			}
			break
		}
		if !ar.Deducted {
			out.AllDeducted = false
		}
		out.Results = append(out.Results, ar)
	}
	if !out.AllDeducted {
		o.log.Warn("order confirmation incomplete", zap.String("order_token", orderToken))
	}
	return out, nil
}

// PruneFinished forgets terminal attempts last updated before cutoff.
func (o *Orchestrator) PruneFinished(cutoff time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for token, t := range o.attempts {
		t.mu.Lock()
		drop := t.attempt.State.Terminal() && t.attempt.UpdatedAt.Before(cutoff)
		t.mu.Unlock()
		if drop {
			delete(o.attempts, token)
			n++
		}
	}
	return n
}

// Close stops waiting attempts. Their reservations stay held until the
// stale-reservation sweep releases them.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.closing)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) await(t *tracked) {
	defer o.wg.Done()

	timer := time.NewTimer(o.cfg.PaymentTimeout)
	defer timer.Stop()

	token := o.snapshot(t).OrderToken
	var sig PaymentSignal
	select {
	case sig = <-t.signals:
	case <-timer.C:
		o.log.Info("payment wait timed out", zap.String("order_token", token))
		sig = PaymentSignal{OrderToken: token, Outcome: OutcomeTimeout}
	case <-o.closing:
		o.log.Warn("shutdown while awaiting payment, reservations left held",
			zap.String("order_token", token),
			zap.Strings("reservation_ids", idStrings(o.snapshot(t).ReservationIDs())),
		)
		return
	}
	o.settle(context.Background(), t, sig)
}

func (o *Orchestrator) settle(ctx context.Context, t *tracked, sig PaymentSignal) {
	if sig.Outcome != OutcomeSuccess {
		reason := ReasonPaymentDeclined
		if sig.Outcome == OutcomeTimeout {
			reason = ReasonPaymentTimeout
		}
		o.advance(t, StateReleasing)
		o.releaseAll(ctx, t)
		o.finish(t, StateFailed, reason)
		return
	}

	t.mu.Lock()
	t.attempt.Charged = true
	t.attempt.PaymentReference = sig.PaymentReference
	t.mu.Unlock()
	o.advance(t, StateConfirming)

	if o.confirmAll(ctx, t) {
		o.finish(t, StateDone, "")
		return
	}
	t.mu.Lock()
	t.attempt.PaidUnfulfilled = true
	t.mu.Unlock()
	o.finish(t, StateFailed, ReasonFulfillment)
}

func (o *Orchestrator) confirmAll(ctx context.Context, t *tracked) bool {
	snap := o.snapshot(t)
	ok := true
	for i, l := range snap.Lines {
		if l.ReservationID == nil {
			continue
		}
		r, err := o.res.ConfirmDeduction(ctx, *l.ReservationID)
		if err != nil {
			o.log.Error("confirm deduction failed",
				zap.String("order_token", snap.OrderToken),
				zap.String("reservation_id", l.ReservationID.String()),
				zap.Error(err),
			)
			ok = false
			continue
		}
		o.updateLine(t, i, func(ls *LineStatus) { ls.Final = r.State })
		if r.State != models.ReservationConfirmed {
			o.log.Error("reservation not confirmable after payment",
				zap.String("order_token", snap.OrderToken),
				zap.String("reservation_id", r.ID.String()),
				zap.String("state", string(r.State)),
			)
			ok = false
		}
	}
	return ok
}

// releaseAll is best effort. Failures are logged with reservation ids so the
// stale sweep can pick them up.
func (o *Orchestrator) releaseAll(ctx context.Context, t *tracked) {
	snap := o.snapshot(t)
	for i, l := range snap.Lines {
		if l.ReservationID == nil {
			continue
		}
		r, err := o.res.Release(ctx, *l.ReservationID)
		if err != nil {
			o.log.Error("release failed, left for stale sweep",
				zap.String("order_token", snap.OrderToken),
				zap.String("reservation_id", l.ReservationID.String()),
				zap.Error(err),
			)
			continue
		}
		o.updateLine(t, i, func(ls *LineStatus) { ls.Final = r.State })
	}
}

// track registers a new attempt. prev is the FAILED attempt it replaces, if any.
func (o *Orchestrator) track(req Request) (t, prev *tracked, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, nil, ErrShuttingDown
	}
	if p, ok := o.attempts[req.OrderToken]; ok {
		p.mu.Lock()
		st := p.attempt.State
		p.mu.Unlock()
		// A failed attempt may be retried under the same token.
		if st != StateFailed {
			return nil, nil, ErrAttemptExists
		}
		prev = p
	}
	now := o.now()
	t = &tracked{
		attempt: Attempt{
			OrderToken: req.OrderToken,
			Pincode:    req.Pincode,
			State:      StateValidating,
			History:    []State{StateValidating},
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		signals: make(chan PaymentSignal, 1),
		done:    make(chan struct{}),
	}
	o.attempts[req.OrderToken] = t
	return t, prev, nil
}

// untrack drops t and puts back the attempt it replaced.
func (o *Orchestrator) untrack(token string, t, prev *tracked) {
	o.mu.Lock()
	if o.attempts[token] == t {
		if prev != nil {
			o.attempts[token] = prev
		} else {
			delete(o.attempts, token)
		}
	}
	o.mu.Unlock()
}

func (o *Orchestrator) lookup(token string) *tracked {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts[strings.TrimSpace(token)]
}

func (o *Orchestrator) snapshot(t *tracked) Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempt.clone()
}

func (o *Orchestrator) lineWarehouse(t *tracked, i int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempt.Lines[i].WarehouseID
}

func (o *Orchestrator) updateLine(t *tracked, i int, fn func(*LineStatus)) {
	t.mu.Lock()
	fn(&t.attempt.Lines[i])
	t.attempt.UpdatedAt = o.now()
	t.mu.Unlock()
}

func (o *Orchestrator) advance(t *tracked, s State) {
	t.mu.Lock()
	t.attempt.State = s
	t.attempt.History = append(t.attempt.History, s)
	t.attempt.UpdatedAt = o.now()
	t.mu.Unlock()
}

// finish moves the attempt into a terminal state exactly once and reports it
// before waiters are released. A success signal still buffered when an unpaid
// attempt fails means the customer paid for an order that will not ship.
func (o *Orchestrator) finish(t *tracked, s State, reason string) {
	t.mu.Lock()
	if t.attempt.State.Terminal() {
		t.mu.Unlock()
		return
	}
	t.attempt.State = s
	t.attempt.FailureReason = reason
	t.attempt.History = append(t.attempt.History, s)
	t.attempt.UpdatedAt = o.now()
	if s == StateFailed && !t.attempt.Charged {
		select {
		case sig := <-t.signals:
			if sig.Outcome == OutcomeSuccess {
				t.attempt.Charged = true
				t.attempt.PaidUnfulfilled = true
				t.attempt.PaymentReference = sig.PaymentReference
			}
		default:
		}
	}
	snap := t.attempt.clone()
	t.mu.Unlock()
	defer close(t.done)

	kind := EventFailed
	if s == StateDone {
		kind = EventCompleted
		o.log.Info("checkout completed", zap.String("order_token", snap.OrderToken))
	} else {
		o.log.Info("checkout failed",
			zap.String("order_token", snap.OrderToken),
			zap.String("reason", reason),
			zap.Bool("charged", snap.Charged),
		)
	}
	o.publish(eventFor(kind, snap, o.now()))
	if snap.PaidUnfulfilled {
		o.reportPaidUnfulfilled(context.Background(), snap)
	}
}

func (o *Orchestrator) reportPaidUnfulfilled(ctx context.Context, a Attempt) {
	o.log.Error("payment captured but order not fulfilled",
		zap.String("order_token", a.OrderToken),
		zap.String("payment_reference", a.PaymentReference),
		zap.Strings("reservation_ids", idStrings(a.ReservationIDs())),
	)
	o.publish(eventFor(EventPaidUnfulfilled, a, o.now()))
	if o.alerter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.NotifyTimeout)
	defer cancel()
	if err := o.alerter.PaidUnfulfilled(ctx, a); err != nil {
		o.log.Error("paid-unfulfilled alert failed", zap.String("order_token", a.OrderToken), zap.Error(err))
	}
}

func (o *Orchestrator) publish(ev Event) {
	if o.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.NotifyTimeout)
	defer cancel()
	if err := o.pub.PublishCheckout(ctx, ev); err != nil {
		o.log.Warn("failed to publish checkout event",
			zap.String("type", ev.Type),
			zap.String("order_token", ev.OrderToken),
			zap.Error(err),
		)
	}
}

func eventFor(kind string, a Attempt, at time.Time) Event {
	return Event{
		Type:             kind,
		OrderToken:       a.OrderToken,
		State:            a.State,
		Charged:          a.Charged,
		PaidUnfulfilled:  a.PaidUnfulfilled,
		PaymentReference: a.PaymentReference,
		FailureReason:    a.FailureReason,
		ReservationIDs:   a.ReservationIDs(),
		At:               at,
	}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

package delivery

import (
	"allocation-service/internal/allocation"
	"allocation-service/internal/apperr"
	"allocation-service/internal/models"
	"allocation-service/internal/pincode"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	zonePrefix  = "zone:"
	availPrefix = "avail:"

	MaxBatchRequests = 100
)

type Availability interface {
	CheckAvailability(ctx context.Context, sku models.SKU, code string, quantity int64) (allocation.Result, error)
	DeliverableSKUs(ctx context.Context, code string) ([]allocation.Offer, bool, error)
}

type Locator interface {
	Lookup(code string) (pincode.Location, error)
}

type Request struct {
	SKU      models.SKU
	Pincode  string
	Quantity int64
}

type pincodeEntry struct {
	Found    bool             `json:"found"`
	Location pincode.Location `json:"location"`
}

// Service is the read-side front for delivery checks. Its answers are
// advisory; reservation always re-checks against live stock.
type Service struct {
	cfg     Config
	cache   *Cache
	engine  Availability
	locator Locator
	batcher *Batcher[Request, allocation.Result]
	log     *zap.Logger
}

func NewService(cfg Config, c *Cache, engine Availability, locator Locator, log *zap.Logger) *Service {
	s := &Service{cfg: cfg, cache: c, engine: engine, locator: locator, log: log}
	s.batcher = NewBatcher(s.evaluate, cfg.BatchWindow, cfg.MaxBatchSize, cfg.BatchTimeout)
	return s
}

// evaluate is one computation pass over a batch; any error fails the batch.
func (s *Service) evaluate(ctx context.Context, reqs []Request) ([]allocation.Result, error) {
	out := make([]allocation.Result, len(reqs))
	for i, r := range reqs {
		res, err := s.engine.CheckAvailability(ctx, r.SKU, r.Pincode, r.Quantity)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

// Batch evaluates reqs in a single pass without the cache. Results match
// reqs by index; one failing request fails the whole batch.
func (s *Service) Batch(ctx context.Context, reqs []Request) ([]allocation.Result, error) {
	switch {
	case len(reqs) == 0:
		return nil, apperr.Invalid("items", "batch is empty")
	case len(reqs) > MaxBatchRequests:
		return nil, apperr.Invalid("items", fmt.Sprintf("at most %d requests per batch", MaxBatchRequests))
	}
	for _, r := range reqs {
		if err := validateRequest(r); err != nil {
			return nil, err
		}
	}
	return s.batcher.Run(ctx, reqs)
}

func (s *Service) CheckProduct(ctx context.Context, sku models.SKU, code string, quantity int64) (allocation.Result, error) {
	req := Request{SKU: sku, Pincode: code, Quantity: quantity}
	if err := validateRequest(req); err != nil {
		return allocation.Result{}, err
	}
	key := fmt.Sprintf("%s%s|%s|%d", availPrefix, sku.ID(), code, quantity)
	return getJSON(ctx, s.cache, key, s.cfg.AvailabilityTTL, func(ctx context.Context) (allocation.Result, error) {
		return s.batcher.Do(ctx, req)
	})
}

// CheckCart fans the lines out through the batcher so a cart is usually
// answered by one pass. Lines keep their cart order.
func (s *Service) CheckCart(ctx context.Context, lines []allocation.Line, code string) (allocation.CartResult, error) {
	if len(lines) == 0 {
		return allocation.CartResult{}, apperr.Invalid("items", "cart is empty")
	}
	for _, l := range lines {
		if err := validateRequest(Request{SKU: l.SKU, Pincode: code, Quantity: l.Quantity}); err != nil {
			return allocation.CartResult{}, err
		}
	}

	results := make([]allocation.Result, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range lines {
		g.Go(func() error {
			res, err := s.CheckProduct(gctx, l.SKU, code, l.Quantity)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return allocation.CartResult{}, err
	}

	out := allocation.CartResult{Lines: results}
	for _, r := range results {
		if r.Deliverable {
			out.Deliverable = append(out.Deliverable, r)
		} else {
			out.Undeliverable = append(out.Undeliverable, r)
		}
	}
	return out, nil
}

// PincodeDetails caches misses too; InvalidateZones clears them after a reference import.
func (s *Service) PincodeDetails(ctx context.Context, code string) (pincode.Location, error) {
	if err := pincode.Validate(code); err != nil {
		return pincode.Location{}, err
	}
	e, err := getJSON(ctx, s.cache, zonePrefix+code, s.cfg.ZoneTTL, func(ctx context.Context) (pincodeEntry, error) {
		loc, err := s.locator.Lookup(code)
		if errors.Is(err, pincode.ErrZoneNotFound) {
			return pincodeEntry{}, nil
		}
		if err != nil {
			return pincodeEntry{}, err
		}
		return pincodeEntry{Found: true, Location: loc}, nil
	})
	if err != nil {
		return pincode.Location{}, err
	}
	if !e.Found {
		return pincode.Location{}, pincode.ErrZoneNotFound
	}
	return e.Location, nil
}

// DeliverableProducts reads live stock; it is a listing, so it bypasses the cache.
func (s *Service) DeliverableProducts(ctx context.Context, code string) ([]allocation.Offer, error) {
	offers, ok, err := s.engine.DeliverableSKUs(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pincode.ErrZoneNotFound
	}
	return offers, nil
}

func (s *Service) InvalidateSKU(ctx context.Context, skuID string) int {
	return s.cache.Invalidate(ctx, availPrefix+skuID+"|")
}

func (s *Service) InvalidateZones(ctx context.Context) int {
	n := s.cache.Invalidate(ctx, zonePrefix)
	n += s.cache.Invalidate(ctx, availPrefix)
	s.log.Info("delivery cache cleared after reference change", zap.Int("entries", n))
	return n
}

func (s *Service) Sweep() int { return s.cache.Sweep() }

func (s *Service) Stats() Stats {
	st := s.cache.Stats()
	st.Batches = s.batcher.Batches()
	return st
}

func getJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	b, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}

func validateRequest(r Request) error {
	if r.SKU.ProductID == uuid.Nil {
		return apperr.Invalid("sku_id", "required")
	}
	if r.Quantity <= 0 {
		return apperr.Invalid("quantity", "must be greater than zero")
	}
	return pincode.Validate(r.Pincode)
}

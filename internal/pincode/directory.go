package pincode

import (
	"allocation-service/internal/apperr"
	"allocation-service/internal/models"
	"context"
	"errors"
	"regexp"
	"sync"

	"go.uber.org/zap"
)

var ErrZoneNotFound = errors.New("zone not found for pincode")

var pattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

type Source interface {
	ListZones(ctx context.Context) ([]models.Zone, error)
	ListPincodes(ctx context.Context) ([]models.Pincode, error)
}

// ZoneCoverage reports whether any active warehouse serves a zone.
type ZoneCoverage interface {
	ServesZone(zoneID string) bool
}

type Location struct {
	Pincode     models.Pincode
	Zone        models.Zone
	Serviceable bool
}

type Directory struct {
	src      Source
	coverage ZoneCoverage
	log      *zap.Logger

	mu       sync.RWMutex
	zones    map[string]models.Zone
	pincodes map[string]models.Pincode
}

func NewDirectory(src Source, coverage ZoneCoverage, log *zap.Logger) *Directory {
	return &Directory{
		src:      src,
		coverage: coverage,
		log:      log,
		zones:    map[string]models.Zone{},
		pincodes: map[string]models.Pincode{},
	}
}

func Validate(code string) error {
	if !pattern.MatchString(code) {
		return apperr.Invalid("pincode", "must be 6 digits and must not start with 0")
	}
	return nil
}

// Refresh swaps in a fresh snapshot of zones and pincodes.
func (d *Directory) Refresh(ctx context.Context) error {
	zones, err := d.src.ListZones(ctx)
	if err != nil {
		return apperr.Storage("list zones", err)
	}
	pins, err := d.src.ListPincodes(ctx)
	if err != nil {
		return apperr.Storage("list pincodes", err)
	}

	zm := make(map[string]models.Zone, len(zones))
	for _, z := range zones {
		zm[z.ID] = z
	}
	pm := make(map[string]models.Pincode, len(pins))
	orphans := 0
	for _, p := range pins {
		if _, ok := zm[p.ZoneID]; !ok {
			orphans++
			continue
		}
		pm[p.Code] = p
	}
	if orphans > 0 {
		d.log.Warn("pincodes reference unknown zones", zap.Int("count", orphans))
	}

	d.mu.Lock()
	d.zones, d.pincodes = zm, pm
	d.mu.Unlock()

	d.log.Info("pincode directory refreshed", zap.Int("zones", len(zm)), zap.Int("pincodes", len(pm)))
	return nil
}

// ResolveZone returns a ValidationError for malformed input and
// ErrZoneNotFound for unmapped or blocked pincodes.
func (d *Directory) ResolveZone(code string) (models.Zone, error) {
	loc, err := d.Lookup(code)
	if err != nil {
		return models.Zone{}, err
	}
	if !loc.Pincode.Deliverable {
		return models.Zone{}, ErrZoneNotFound
	}
	return loc.Zone, nil
}

// Lookup returns the pincode details even when the pincode is blocked.
func (d *Directory) Lookup(code string) (Location, error) {
	if err := Validate(code); err != nil {
		return Location{}, err
	}
	d.mu.RLock()
	p, ok := d.pincodes[code]
	z := d.zones[p.ZoneID]
	d.mu.RUnlock()
	if !ok {
		return Location{}, ErrZoneNotFound
	}
	return Location{Pincode: p, Zone: z, Serviceable: p.Deliverable && d.IsServiceable(z)}, nil
}

func (d *Directory) IsServiceable(z models.Zone) bool {
	if z.ID == "" || d.coverage == nil {
		return false
	}
	return d.coverage.ServesZone(z.ID)
}

func (d *Directory) ZoneIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.zones))
	for id := range d.zones {
		ids = append(ids, id)
	}
	return ids
}

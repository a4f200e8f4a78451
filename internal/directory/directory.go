// Package directory resolves airport and airline reference data used to
// enrich tracked flights.
package directory

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/saviobatista/flightwatch/internal/provider"
	"github.com/saviobatista/flightwatch/internal/ratelimit"
	"github.com/saviobatista/flightwatch/internal/types"
)

// DefaultTTL is how long directory records stay cached
const DefaultTTL = 180 * 24 * time.Hour

// LogoBaseURL serves airline logos by IATA code
const LogoBaseURL = "https://pics.avs.io/64/64/"

// AirportSource looks airports up by IATA code. It returns nil, nil when
// it has no record.
type AirportSource interface {
	Name() string
	LookupAirport(ctx context.Context, iata string) (*types.AirportInfo, error)
}

// AirlineSource looks airlines up by IATA code
type AirlineSource interface {
	Name() string
	LookupAirline(ctx context.Context, iata string) (*types.AirlineInfo, error)
}

// Store caches directory records. Get methods return nil, nil on a miss.
type Store interface {
	GetAirport(ctx context.Context, iata string) (*types.AirportInfo, error)
	StoreAirport(ctx context.Context, info *types.AirportInfo, ttl time.Duration) error
	GetAirline(ctx context.Context, iata string) (*types.AirlineInfo, error)
	StoreAirline(ctx context.Context, info *types.AirlineInfo, ttl time.Duration) error
}

// Directory chains cached records, remote sources and the static table
type Directory struct {
	static   *Static
	store    Store
	ttl      time.Duration
	blocks   *ratelimit.Tracker
	airports []AirportSource
	airlines []AirlineSource
}

// New creates a directory. A nil store disables caching.
func New(static *Static, store Store, ttl time.Duration) *Directory {
	if static == nil {
		static = NewStatic(nil)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{static: static, store: store, ttl: ttl}
}

// SetBlocks shares provider cooldowns with the directory. Blocked sources
// are skipped and throttled sources are blocked.
func (d *Directory) SetBlocks(blocks *ratelimit.Tracker) {
	d.blocks = blocks
}

// AddAirportSource appends a source; sources are tried in order
func (d *Directory) AddAirportSource(s AirportSource) {
	d.airports = append(d.airports, s)
}

// AddAirlineSource appends a source; sources are tried in order
func (d *Directory) AddAirlineSource(s AirlineSource) {
	d.airlines = append(d.airlines, s)
}

// LogoURL returns the logo image URL for an airline IATA code
func LogoURL(iata string) string {
	code := normalizeCode(iata)
	if code == "" {
		return ""
	}
	return LogoBaseURL + code + ".png"
}

func completeAirport(info *types.AirportInfo) bool {
	return info != nil && info.Name != "" && info.City != "" && info.TZ != ""
}

func (d *Directory) blocked(name string) bool {
	return d.blocks != nil && d.blocks.IsBlocked(name)
}

func (d *Directory) lookupFailed(name, what string, err error) {
	var pe *provider.Error
	if d.blocks != nil && errors.As(err, &pe) && pe.Throttled() {
		cooldown := pe.RetryAfter
		if cooldown <= 0 {
			cooldown = ratelimit.DefaultRateLimitCooldown
			if pe.Kind == provider.KindQuotaExceeded {
				cooldown = ratelimit.DefaultQuotaCooldown
			}
		}
		d.blocks.Block(name, int(cooldown.Seconds()), string(pe.Kind))
	}
	log.Printf("Warning: directory lookup for %s via %s failed: %v", what, name, err)
}

// Airport returns the best known record for iata, or nil. Lookup failures
// are logged and fall through to the next source.
func (d *Directory) Airport(ctx context.Context, iata string) *types.AirportInfo {
	code := normalizeCode(iata)
	if code == "" {
		return nil
	}

	if d.store != nil {
		cached, err := d.store.GetAirport(ctx, code)
		if err != nil {
			log.Printf("Warning: failed to read cached airport %s: %v", code, err)
		} else if completeAirport(cached) {
			return cached
		}
	}

	fallback := d.static.Airport(code)
	for _, src := range d.airports {
		if d.blocked(src.Name()) {
			continue
		}
		info, err := src.LookupAirport(ctx, code)
		if err != nil {
			d.lookupFailed(src.Name(), code, err)
			continue
		}
		if info == nil {
			continue
		}

		merged := mergeAirport(fallback, info)
		merged.IATA = code
		d.storeAirport(ctx, merged)
		return merged
	}

	if fallback != nil {
		d.storeAirport(ctx, fallback)
	}
	return fallback
}

// mergeAirport overlays the non-empty fields of info on base
func mergeAirport(base, info *types.AirportInfo) *types.AirportInfo {
	out := types.AirportInfo{}
	if base != nil {
		out = *base
	}
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&out.Name, info.Name)
	overlay(&out.City, info.City)
	overlay(&out.TZ, info.TZ)
	overlay(&out.Country, info.Country)
	overlay(&out.Source, info.Source)
	return &out
}

func (d *Directory) storeAirport(ctx context.Context, info *types.AirportInfo) {
	if d.store == nil {
		return
	}
	if err := d.store.StoreAirport(ctx, info, d.ttl); err != nil {
		log.Printf("Warning: failed to cache airport %s: %v", info.IATA, err)
	}
}

// Airline returns the best known record for iata, or nil
func (d *Directory) Airline(ctx context.Context, iata string) *types.AirlineInfo {
	code := normalizeCode(iata)
	if code == "" {
		return nil
	}

	if d.store != nil {
		cached, err := d.store.GetAirline(ctx, code)
		if err != nil {
			log.Printf("Warning: failed to read cached airline %s: %v", code, err)
		} else if cached != nil {
			return cached
		}
	}

	for _, src := range d.airlines {
		if d.blocked(src.Name()) {
			continue
		}
		info, err := src.LookupAirline(ctx, code)
		if err != nil {
			d.lookupFailed(src.Name(), code, err)
			continue
		}
		if info == nil {
			continue
		}

		info.IATA = code
		if info.LogoURL == "" {
			info.LogoURL = LogoURL(code)
		}
		if d.store != nil {
			if err := d.store.StoreAirline(ctx, info, d.ttl); err != nil {
				log.Printf("Warning: failed to cache airline %s: %v", code, err)
			}
		}
		return info
	}
	return nil
}

// AirportTZ returns the IANA zone for iata from the static table, falling
// back to a directory lookup
func (d *Directory) AirportTZ(ctx context.Context, iata string) string {
	if tz := d.static.TZ(iata); tz != "" {
		return tz
	}
	if info := d.Airport(ctx, iata); info != nil {
		return info.TZ
	}
	return ""
}

// Enrich fills missing airport and airline fields on f. Existing values
// are never overwritten.
func (d *Directory) Enrich(ctx context.Context, f *types.Flight) {
	for _, leg := range []*types.Leg{&f.Dep, &f.Arr} {
		a := &leg.Airport
		if a.IATA == "" || (a.Name != "" && a.City != "" && a.TZ != "") {
			continue
		}
		info := d.Airport(ctx, a.IATA)
		if info == nil {
			continue
		}
		fill(&a.Name, info.Name)
		fill(&a.City, info.City)
		fill(&a.TZ, info.TZ)
	}

	if f.AirlineName == "" && f.AirlineCode != "" {
		if info := d.Airline(ctx, f.AirlineCode); info != nil {
			fill(&f.AirlineName, info.Name)
			fill(&f.AirlineLogoURL, info.LogoURL)
		}
	}
	if f.AirlineLogoURL == "" {
		f.AirlineLogoURL = LogoURL(f.AirlineCode)
	}
}

func fill(dst *string, v string) {
	if strings.TrimSpace(*dst) == "" && v != "" {
		*dst = v
	}
}

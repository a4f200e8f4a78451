package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/saviobatista/flightwatch/internal/db"
	"github.com/saviobatista/flightwatch/internal/directory"
	"github.com/saviobatista/flightwatch/internal/merge"
	"github.com/saviobatista/flightwatch/internal/provider"
	"github.com/saviobatista/flightwatch/internal/status"
	"github.com/saviobatista/flightwatch/internal/tz"
	"github.com/saviobatista/flightwatch/internal/types"
)

// SourceManual tags user-entered flights
const SourceManual = "manual"

var validate = validator.New()

// flightIdentity is the validated, normalized identity of an added flight
type flightIdentity struct {
	AirlineCode  string `validate:"required,alphanum,min=2,max=3"`
	FlightNumber string `validate:"required,alphanum,max=5"`
	DepAirport   string `validate:"required,alpha,min=3,max=4"`
	ArrAirport   string `validate:"required,alpha,min=3,max=4"`
}

// describeValidation turns validator errors into one readable message
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			parts = append(parts, fe.Field()+" is required")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %q is not a valid code", fe.Field(), fe.Value()))
	}
	return strings.Join(parts, ", ")
}

// Store persists manual flights. *db.Client implements it.
type Store interface {
	UpsertManualFlight(ctx context.Context, f *types.ManualFlight) error
	GetManualFlight(ctx context.Context, flightKey string) (*types.ManualFlight, error)
	ListManualFlights(ctx context.Context) ([]*types.ManualFlight, error)
	ListManualFlightsBetween(ctx context.Context, start, end time.Time) ([]*types.ManualFlight, error)
	UpdateManualFlight(ctx context.Context, flightKey string, u *db.ManualFlightUpdate) (bool, error)
	DeleteManualFlight(ctx context.Context, flightKey string) (bool, error)
	ClearManualFlights(ctx context.Context) (int64, error)
}

// TZResolver maps an airport code to its IANA zone, or "" when unknown
type TZResolver interface {
	AirportTZ(ctx context.Context, iata string) string
}

// Notifier is told whenever the stored flight list changes
type Notifier interface {
	PublishChanged(ctx context.Context, flightKey string) error
}

// Manual is the user-maintained flight list
type Manual struct {
	store    Store
	resolver TZResolver
	notifier Notifier
}

// NewManual creates a manual itinerary over store
func NewManual(store Store) *Manual {
	return &Manual{store: store}
}

// SetTZResolver sets the lookup used to read naive departure times
func (m *Manual) SetTZResolver(r TZResolver) {
	m.resolver = r
}

// SetNotifier sets the change listener
func (m *Manual) SetNotifier(n Notifier) {
	m.notifier = n
}

// Name implements Source
func (m *Manual) Name() string { return SourceManual }

func (m *Manual) changed(ctx context.Context, flightKey string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.PublishChanged(ctx, flightKey); err != nil {
		log.Printf("Warning: failed to publish change for %s: %v", flightKey, err)
	}
}

// AddRequest describes a flight entered by the user. Times are ISO-8601;
// a value without an offset is read in the airport's timezone.
type AddRequest struct {
	AirlineCode        string
	FlightNumber       string
	DepAirport         string
	ArrAirport         string
	ScheduledDeparture string
	ScheduledArrival   string
	Travellers         []string
	Notes              string
	AirlineName        string
	AirlineLogoURL     string
	AircraftType       string
	DepAirportName     string
	DepAirportCity     string
	DepAirportTZ       string
	ArrAirportName     string
	ArrAirportCity     string
	ArrAirportTZ       string
}

// NormalizeTravellers trims names and drops empty entries
func NormalizeTravellers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, name := range in {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (m *Manual) resolveTime(ctx context.Context, raw, iata, zone string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if !tz.HasOffset(raw) && zone == "" && m.resolver != nil {
		zone = m.resolver.AirportTZ(ctx, iata)
	}
	return tz.Parse(tz.Normalize(raw, zone))
}

// Add validates and stores a flight, replacing any stored flight with the
// same key. It returns the flight key.
func (m *Manual) Add(ctx context.Context, req AddRequest) (string, error) {
	id := flightIdentity{
		AirlineCode:  strings.ToUpper(strings.TrimSpace(req.AirlineCode)),
		FlightNumber: strings.ToUpper(strings.TrimSpace(req.FlightNumber)),
		DepAirport:   strings.ToUpper(strings.TrimSpace(req.DepAirport)),
		ArrAirport:   strings.ToUpper(strings.TrimSpace(req.ArrAirport)),
	}
	if err := validate.Struct(id); err != nil {
		return "", provider.NewError(SourceManual, provider.KindBadQuery, describeValidation(err))
	}
	airline, number, dep, arr := id.AirlineCode, id.FlightNumber, id.DepAirport, id.ArrAirport

	depAt, ok := m.resolveTime(ctx, req.ScheduledDeparture, dep, req.DepAirportTZ)
	if !ok {
		return "", provider.NewError(SourceManual, provider.KindBadDate,
			fmt.Sprintf("scheduled departure %q is not a valid time", req.ScheduledDeparture))
	}

	var arrAt *time.Time
	if strings.TrimSpace(req.ScheduledArrival) != "" {
		t, ok := m.resolveTime(ctx, req.ScheduledArrival, arr, req.ArrAirportTZ)
		if !ok {
			return "", provider.NewError(SourceManual, provider.KindBadDate,
				fmt.Sprintf("scheduled arrival %q is not a valid time", req.ScheduledArrival))
		}
		arrAt = &t
	}

	key := merge.MakeFlightKey(airline, number, dep, depAt.UTC().Format("2006-01-02"))
	flight := &types.ManualFlight{
		FlightKey:          key,
		Source:             SourceManual,
		AirlineCode:        airline,
		FlightNumber:       number,
		AirlineName:        strings.TrimSpace(req.AirlineName),
		AirlineLogoURL:     strings.TrimSpace(req.AirlineLogoURL),
		AircraftType:       strings.TrimSpace(req.AircraftType),
		DepAirport:         dep,
		ArrAirport:         arr,
		DepAirportName:     req.DepAirportName,
		DepAirportCity:     req.DepAirportCity,
		DepAirportTZ:       req.DepAirportTZ,
		ArrAirportName:     req.ArrAirportName,
		ArrAirportCity:     req.ArrAirportCity,
		ArrAirportTZ:       req.ArrAirportTZ,
		ScheduledDeparture: depAt.UTC(),
		ScheduledArrival:   arrAt,
		Travellers:         NormalizeTravellers(req.Travellers),
		Notes:              strings.TrimSpace(req.Notes),
	}

	if err := m.store.UpsertManualFlight(ctx, flight); err != nil {
		return "", err
	}
	m.changed(ctx, key)
	return key, nil
}

// List returns every stored flight. Stored states are rewritten once into
// their canonical labels.
func (m *Manual) List(ctx context.Context) ([]*types.ManualFlight, error) {
	flights, err := m.store.ListManualFlights(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range flights {
		m.normalizeState(ctx, f)
	}
	return flights, nil
}

func (m *Manual) normalizeState(ctx context.Context, f *types.ManualFlight) {
	canonical := string(status.NormalizeState(f.StatusState, ""))
	if canonical == f.StatusState {
		return
	}
	f.StatusState = canonical
	if _, err := m.store.UpdateManualFlight(ctx, f.FlightKey, &db.ManualFlightUpdate{StatusState: &canonical}); err != nil {
		log.Printf("Warning: failed to normalize state for %s: %v", f.FlightKey, err)
	}
}

// Update applies a partial update and reports whether the flight exists
func (m *Manual) Update(ctx context.Context, flightKey string, u *db.ManualFlightUpdate) (bool, error) {
	if u.Travellers != nil {
		u.Travellers = NormalizeTravellers(u.Travellers)
	}
	ok, err := m.store.UpdateManualFlight(ctx, flightKey, u)
	if err != nil {
		return false, err
	}
	if ok {
		m.changed(ctx, flightKey)
	}
	return ok, nil
}

// Remove deletes one flight and reports whether it existed
func (m *Manual) Remove(ctx context.Context, flightKey string) (bool, error) {
	ok, err := m.store.DeleteManualFlight(ctx, flightKey)
	if err != nil {
		return false, err
	}
	if ok {
		m.changed(ctx, flightKey)
	}
	return ok, nil
}

// Clear deletes every flight and returns how many were stored
func (m *Manual) Clear(ctx context.Context) (int64, error) {
	n, err := m.store.ClearManualFlights(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.changed(ctx, "")
	}
	return n, nil
}

// Segments implements Source
func (m *Manual) Segments(ctx context.Context, start, end time.Time) ([]types.Segment, error) {
	flights, err := m.store.ListManualFlightsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	segments := make([]types.Segment, 0, len(flights))
	for _, f := range flights {
		m.normalizeState(ctx, f)
		segments = append(segments, toSegment(f))
	}
	return segments, nil
}

func toSegment(f *types.ManualFlight) types.Segment {
	logo := f.AirlineLogoURL
	if logo == "" {
		logo = directory.LogoURL(f.AirlineCode)
	}
	source := f.Source
	if source == "" {
		source = SourceManual
	}

	seg := types.Segment{
		Source:         source,
		FlightKey:      f.FlightKey,
		AirlineCode:    f.AirlineCode,
		FlightNumber:   f.FlightNumber,
		AirlineName:    f.AirlineName,
		AirlineLogoURL: logo,
		AircraftType:   f.AircraftType,
		Notes:          f.Notes,
		Travellers:     append([]string{}, f.Travellers...),
		StatusState:    f.StatusState,
		Dep: types.Leg{
			Airport: types.Airport{
				IATA: f.DepAirport,
				Name: f.DepAirportName,
				City: f.DepAirportCity,
				TZ:   f.DepAirportTZ,
			},
			Scheduled: tz.Format(f.ScheduledDeparture),
		},
		Arr: types.Leg{
			Airport: types.Airport{
				IATA: f.ArrAirport,
				Name: f.ArrAirportName,
				City: f.ArrAirportCity,
				TZ:   f.ArrAirportTZ,
			},
		},
	}
	if f.ScheduledArrival != nil {
		seg.Arr.Scheduled = tz.Format(*f.ScheduledArrival)
	}
	return seg
}

func missing(stored, learned string) *string {
	learned = strings.TrimSpace(learned)
	if strings.TrimSpace(stored) != "" || learned == "" {
		return nil
	}
	return &learned
}

// Backfill writes airports and scheduled times a provider reported back
// into the stored flight when the user left them out.
func (m *Manual) Backfill(ctx context.Context, f *types.Flight, p *types.StatusPayload) error {
	stored, err := m.store.GetManualFlight(ctx, f.FlightKey)
	if err != nil || stored == nil {
		return err
	}

	u := &db.ManualFlightUpdate{
		DepAirport: missing(stored.DepAirport, firstNonEmpty(f.Dep.Airport.IATA, p.DepIATA)),
		ArrAirport: missing(stored.ArrAirport, firstNonEmpty(f.Arr.Airport.IATA, p.ArrIATA)),
	}
	if stored.ScheduledArrival == nil {
		raw := firstNonEmpty(f.Arr.Scheduled, p.ArrScheduled)
		if t, ok := tz.Parse(tz.Normalize(raw, f.Arr.Airport.TZ)); ok {
			u.ScheduledArrival = &t
		}
	}
	if u.Empty() {
		return nil
	}

	if _, err := m.store.UpdateManualFlight(ctx, f.FlightKey, u); err != nil {
		return fmt.Errorf("failed to backfill %s: %w", f.FlightKey, err)
	}
	return nil
}

// SaveEnrichment persists directory data filled in during a pass so the
// next pass does not look it up again
func (m *Manual) SaveEnrichment(ctx context.Context, f *types.Flight) error {
	if f.Source != SourceManual {
		return nil
	}
	stored, err := m.store.GetManualFlight(ctx, f.FlightKey)
	if err != nil || stored == nil {
		return err
	}

	u := &db.ManualFlightUpdate{
		AirlineName:    missing(stored.AirlineName, f.AirlineName),
		AirlineLogoURL: missing(stored.AirlineLogoURL, f.AirlineLogoURL),
		DepAirportName: missing(stored.DepAirportName, f.Dep.Airport.Name),
		DepAirportCity: missing(stored.DepAirportCity, f.Dep.Airport.City),
		DepAirportTZ:   missing(stored.DepAirportTZ, f.Dep.Airport.TZ),
		ArrAirportName: missing(stored.ArrAirportName, f.Arr.Airport.Name),
		ArrAirportCity: missing(stored.ArrAirportCity, f.Arr.Airport.City),
		ArrAirportTZ:   missing(stored.ArrAirportTZ, f.Arr.Airport.TZ),
	}
	if u.Empty() {
		return nil
	}
	if _, err := m.store.UpdateManualFlight(ctx, f.FlightKey, u); err != nil {
		return fmt.Errorf("failed to save enrichment for %s: %w", f.FlightKey, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

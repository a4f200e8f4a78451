package merge

import (
	"reflect"
	"testing"

	"github.com/saviobatista/flightwatch/internal/types"
)

func TestMakeFlightKey(t *testing.T) {
	got := MakeFlightKey(" ai ", "157", "del", "2026-01-30")
	if got != "AI-157-DEL-2026-01-30" {
		t.Errorf("MakeFlightKey() = %q", got)
	}
}

func TestFlightKey(t *testing.T) {
	tests := []struct {
		name string
		seg  types.Segment
		want string
	}{
		{
			name: "explicit key",
			seg:  types.Segment{FlightKey: "AI-157-DEL-2026-01-30", AirlineCode: "XX"},
			want: "AI-157-DEL-2026-01-30",
		},
		{
			name: "composite key",
			seg: types.Segment{
				AirlineCode:  "SK",
				FlightNumber: "926",
				Dep:          types.Leg{Airport: types.Airport{IATA: "CPH"}, Scheduled: "2026-01-30T10:00:00Z"},
			},
			want: "SK-926-CPH-2026-01-30T10:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlightKey(&tt.seg); got != tt.want {
				t.Errorf("FlightKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMerge_SameKeyYieldsOneRecord(t *testing.T) {
	segments := []types.Segment{
		{
			Source:      "manual",
			FlightKey:   "AI-157-DEL-2026-01-30",
			AirlineCode: "AI", FlightNumber: "157",
			Travellers: []string{"Asha", "Ravi"},
			Dep: types.Leg{
				Airport:   types.Airport{IATA: "DEL"},
				Scheduled: "2026-01-30T08:00:00Z",
			},
			StatusState: "unknown",
		},
		{
			Source:      "tripit",
			FlightKey:   "AI-157-DEL-2026-01-30",
			AirlineCode: "AI", FlightNumber: "157",
			AirlineName: "Air India",
			Travellers:  []string{"Ravi", "Meera", "Asha", "ravi"},
			Dep: types.Leg{
				Airport:   types.Airport{IATA: "DEL", Name: "Indira Gandhi International", TZ: "Asia/Kolkata"},
				Scheduled: "2026-01-30T09:00:00Z",
				Estimated: "2026-01-30T08:15:00Z",
				Gate:      "12",
			},
			Arr: types.Leg{
				Airport: types.Airport{IATA: "CPH"},
			},
			StatusState: "Scheduled",
		},
	}

	flights := Merge(segments)
	if len(flights) != 1 {
		t.Fatalf("Expected 1 flight, got %d", len(flights))
	}
	f := flights[0]

	wantTravellers := []string{"Asha", "Ravi", "Meera", "ravi"}
	if !reflect.DeepEqual(f.Travellers, wantTravellers) {
		t.Errorf("Travellers = %v, want %v", f.Travellers, wantTravellers)
	}
	if f.Source != "manual" {
		t.Errorf("Source = %q, want first segment's source", f.Source)
	}
	if f.Dep.Scheduled != "2026-01-30T08:00:00Z" {
		t.Errorf("Dep.Scheduled = %q, want first non-empty value", f.Dep.Scheduled)
	}
	if f.Dep.Estimated != "2026-01-30T08:15:00Z" || f.Dep.Gate != "12" {
		t.Errorf("Expected gaps filled from second segment, got %+v", f.Dep)
	}
	if f.Dep.Airport.Name != "Indira Gandhi International" || f.Dep.Airport.TZ != "Asia/Kolkata" {
		t.Errorf("Expected nested airport block filled, got %+v", f.Dep.Airport)
	}
	if f.Arr.Airport.IATA != "CPH" {
		t.Errorf("Arr.Airport.IATA = %q", f.Arr.Airport.IATA)
	}
	if f.AirlineName != "Air India" {
		t.Errorf("AirlineName = %q", f.AirlineName)
	}
	if f.StatusState != "Scheduled" {
		t.Errorf("StatusState = %q, want unknown replaced", f.StatusState)
	}
}

func TestMerge_StatusStateKeptWhenKnown(t *testing.T) {
	segments := []types.Segment{
		{FlightKey: "K", StatusState: "En Route"},
		{FlightKey: "K", StatusState: "Arrived"},
	}

	f := Merge(segments)[0]
	if f.StatusState != "En Route" {
		t.Errorf("StatusState = %q, want En Route", f.StatusState)
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	segments := []types.Segment{
		{FlightKey: "K", Travellers: []string{"A"}},
		{FlightKey: "K", Travellers: []string{"B"}, Dep: types.Leg{Gate: "7"}},
	}

	flights := Merge(segments)
	flights[0].Travellers[0] = "changed"
	flights[0].Dep.Gate = "99"

	if segments[0].Travellers[0] != "A" || len(segments[0].Travellers) != 1 {
		t.Errorf("First segment travellers mutated: %v", segments[0].Travellers)
	}
	if segments[1].Dep.Gate != "7" {
		t.Errorf("Second segment gate mutated: %q", segments[1].Dep.Gate)
	}
}

func TestMerge_SortedByDeparture(t *testing.T) {
	segments := []types.Segment{
		{FlightKey: "late", Dep: types.Leg{Scheduled: "2026-02-01T10:00:00Z"}},
		{FlightKey: "naive-early", Dep: types.Leg{Airport: types.Airport{TZ: "Asia/Kolkata"}, Scheduled: "2026-01-30T15:30:00"}},
		{FlightKey: "mid", Dep: types.Leg{Scheduled: "2026-01-31T10:00:00+01:00"}},
	}

	flights := Merge(segments)
	var got []string
	for _, f := range flights {
		got = append(got, f.FlightKey)
	}

	want := []string{"naive-early", "mid", "late"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Order = %v, want %v", got, want)
	}
}

func TestMerge_ScheduledNeverOverwritten(t *testing.T) {
	segments := []types.Segment{
		{FlightKey: "K", Dep: types.Leg{Scheduled: "2026-01-30T08:00:00Z"}, Arr: types.Leg{Scheduled: "2026-01-30T17:00:00Z"}},
		{FlightKey: "K", Dep: types.Leg{Scheduled: "2026-01-30T07:00:00Z", Actual: "2026-01-30T08:05:00Z"}, Arr: types.Leg{Scheduled: "2026-01-30T16:00:00Z"}},
	}

	f := Merge(segments)[0]
	if f.Dep.Scheduled != "2026-01-30T08:00:00Z" || f.Arr.Scheduled != "2026-01-30T17:00:00Z" {
		t.Errorf("Scheduled times overwritten: dep=%q arr=%q", f.Dep.Scheduled, f.Arr.Scheduled)
	}
	if f.Dep.Actual != "2026-01-30T08:05:00Z" {
		t.Errorf("Dep.Actual = %q", f.Dep.Actual)
	}
}

func TestMerge_Empty(t *testing.T) {
	if flights := Merge(nil); len(flights) != 0 {
		t.Errorf("Expected no flights, got %d", len(flights))
	}
}

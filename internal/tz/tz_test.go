package tz

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		tzName string
		want   string
	}{
		{"empty", "", "Europe/Copenhagen", ""},
		{"whitespace", "   ", "", ""},
		{"zulu", "2026-01-30T10:00:00Z", "", "2026-01-30T10:00:00Z"},
		{"positive offset", "2026-01-30T15:30:00+05:30", "", "2026-01-30T10:00:00Z"},
		{"offset ignores tz", "2026-01-30T11:00:00+01:00", "Asia/Kolkata", "2026-01-30T10:00:00Z"},
		{"doubled offset", "2026-01-30T10:00:00+00:00+00:00", "", "2026-01-30T10:00:00Z"},
		{"space separator with offset", "2026-01-30 10:00:00+00:00", "", "2026-01-30T10:00:00Z"},
		{"naive in airport tz", "2026-01-30T11:00:00", "Europe/Copenhagen", "2026-01-30T10:00:00Z"},
		{"naive summer time", "2026-07-01T12:00:00", "Europe/Copenhagen", "2026-07-01T10:00:00Z"},
		{"naive without seconds", "2026-01-30 15:30", "Asia/Kolkata", "2026-01-30T10:00:00Z"},
		{"naive without tz is unchanged", "2026-01-30T11:00:00", "", "2026-01-30T11:00:00"},
		{"naive with bad tz is unchanged", "2026-01-30T11:00:00", "Mars/Olympus", "2026-01-30T11:00:00"},
		{"garbage is unchanged", "tomorrow-ish", "Europe/Copenhagen", "tomorrow-ish"},
		{"garbage with offset is unchanged", "noonZ", "", "noonZ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw, tt.tzName); got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.raw, tt.tzName, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	want := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

	got, ok := Parse("2026-01-30T11:00:00+01:00")
	if !ok {
		t.Fatal("Parse() rejected a timestamp with offset")
	}
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("Parse() = %v, want %v in UTC", got, want)
	}

	if _, ok := Parse("2026-01-30T11:00:00"); ok {
		t.Error("Parse() should reject naive timestamps")
	}
	if _, ok := Parse(""); ok {
		t.Error("Parse() should reject empty input")
	}
	if _, ok := Parse("2026-01-30T10:00:00+00:00+00:00"); !ok {
		t.Error("Parse() should tolerate a doubled UTC offset")
	}
}

func TestHasOffset(t *testing.T) {
	if !HasOffset("2026-01-30T10:00:00Z") {
		t.Error("Expected Z suffix to count as offset")
	}
	if !HasOffset("2026-01-30T10:00:00-05:00") {
		t.Error("Expected -05:00 suffix to count as offset")
	}
	if HasOffset("2026-01-30T10:00:00") {
		t.Error("Expected naive timestamp to have no offset")
	}
}

func TestLocal(t *testing.T) {
	if got := Local("2026-01-30T10:00:00Z", "Asia/Kolkata"); got != "2026-01-30T15:30:00+05:30" {
		t.Errorf("Local() = %q", got)
	}
	if got := Local("2026-01-30T10:00:00", "Europe/Copenhagen"); got != "2026-01-30T11:00:00+01:00" {
		t.Errorf("Local() with naive input = %q", got)
	}
	if got := Local("2026-01-30T10:00:00Z", ""); got != "" {
		t.Errorf("Local() without tz = %q, want empty", got)
	}
	if got := Local("", "Europe/Copenhagen"); got != "" {
		t.Errorf("Local() with empty ts = %q, want empty", got)
	}
}

func TestShortName(t *testing.T) {
	winter := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	summer := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	if got := ShortName("Europe/Copenhagen", winter); got != "CET" {
		t.Errorf("ShortName(winter) = %q, want CET", got)
	}
	if got := ShortName("Europe/Copenhagen", summer); got != "CEST" {
		t.Errorf("ShortName(summer) = %q, want CEST", got)
	}
	if got := ShortName("", winter); got != "" {
		t.Errorf("ShortName(empty) = %q, want empty", got)
	}
}

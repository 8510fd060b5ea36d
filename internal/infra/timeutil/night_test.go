package timeutil_test

import (
	"testing"
	"time"

	"coinsweeper-farmer/internal/infra/timeutil"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func TestNightWindowContains(t *testing.T) {
	t.Parallel()

	w := timeutil.NightWindow{FromHour: 0, ToHour: 8}

	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{name: "midnight", t: at(0, 0), want: true},
		{name: "middleOfNight", t: at(3, 30), want: true},
		{name: "lastMinute", t: at(7, 59), want: true},
		{name: "windowEnd", t: at(8, 0), want: false},
		{name: "noon", t: at(12, 0), want: false},
		{name: "beforeMidnight", t: at(23, 59), want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := w.Contains(tc.t); got != tc.want {
				t.Fatalf("Contains(%v) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestNightWindowContainsWrapsMidnight(t *testing.T) {
	t.Parallel()

	w := timeutil.NightWindow{FromHour: 23, ToHour: 6}
	if !w.Contains(at(23, 30)) {
		t.Fatal("23:30 must be inside 23:00-06:00")
	}
	if !w.Contains(at(5, 0)) {
		t.Fatal("05:00 must be inside 23:00-06:00")
	}
	if w.Contains(at(12, 0)) {
		t.Fatal("12:00 must be outside 23:00-06:00")
	}
}

func TestNightWindowUntilEnd(t *testing.T) {
	t.Parallel()

	w := timeutil.NightWindow{FromHour: 0, ToHour: 8}

	if got, want := w.UntilEnd(at(6, 0)), 2*time.Hour; got != want {
		t.Fatalf("UntilEnd(06:00) = %v, want %v", got, want)
	}
	// После конца окна до следующего наступления 08:00 остаются почти сутки.
	if got, want := w.UntilEnd(at(9, 0)), 23*time.Hour; got != want {
		t.Fatalf("UntilEnd(09:00) = %v, want %v", got, want)
	}
}

func TestParseLocation(t *testing.T) {
	t.Parallel()

	if _, err := timeutil.ParseLocation("Europe/Moscow"); err != nil {
		t.Fatalf("IANA zone: %v", err)
	}
	loc, err := timeutil.ParseLocation("UTC+3")
	if err != nil {
		t.Fatalf("offset zone: %v", err)
	}
	_, offset := time.Now().In(loc).Zone()
	if offset != 3*60*60 {
		t.Fatalf("offset = %d, want %d", offset, 3*60*60)
	}
	if _, err = timeutil.ParseLocation("Nowhere/Nothing"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

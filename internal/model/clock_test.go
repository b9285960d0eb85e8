package model

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ClockTime
		wantErr bool
	}{
		{name: "midnight", input: "00:00", want: 0},
		{name: "morning", input: "09:30", want: 9*60 + 30},
		{name: "last minute", input: "23:59", want: 23*60 + 59},
		{name: "no leading zero", input: "9:30", want: 9*60 + 30},
		{name: "out of range hour", input: "24:00", wantErr: true},
		{name: "out of range minute", input: "10:60", wantErr: true},
		{name: "garbage", input: "not a time", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockTimeString(t *testing.T) {
	assert.Equal(t, "00:00", ClockTime(0).String())
	assert.Equal(t, "09:05", ClockTime(9*60+5).String())
	assert.Equal(t, "23:59", ClockTime(23*60+59).String())
}

func TestClockTimeJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(ClockTime(14 * 60))
	require.NoError(t, err)
	assert.Equal(t, `"14:00"`, string(data))

	var c ClockTime
	require.NoError(t, json.Unmarshal([]byte(`"08:15"`), &c))
	assert.Equal(t, ClockTime(8*60+15), c)

	assert.Error(t, json.Unmarshal([]byte(`"25:00"`), &c))
}

func TestClockTimeScan(t *testing.T) {
	var c ClockTime

	require.NoError(t, c.Scan(time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)))
	assert.Equal(t, ClockTime(14*60+30), c)

	require.NoError(t, c.Scan([]byte("09:15:00")))
	assert.Equal(t, ClockTime(9*60+15), c)

	require.NoError(t, c.Scan("16:45:00"))
	assert.Equal(t, ClockTime(16*60+45), c)

	assert.Error(t, c.Scan(42))
}

func TestClockTimeValue(t *testing.T) {
	v, err := ClockTime(9*60 + 30).Value()
	require.NoError(t, err)
	assert.Equal(t, "09:30:00", v)
}

func TestClockTimeAt(t *testing.T) {
	date := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	at := ClockTime(10*60 + 15).At(date)
	assert.Equal(t, time.Date(2026, 5, 20, 10, 15, 0, 0, time.UTC), at)
}

func TestTimeRangeOverlaps(t *testing.T) {
	nineToTen := NewTimeRange(9*60, 60)

	tests := []struct {
		name  string
		other TimeRange
		want  bool
	}{
		{name: "identical", other: NewTimeRange(9*60, 60), want: true},
		{name: "contained", other: NewTimeRange(9*60+15, 30), want: true},
		{name: "overlaps start", other: NewTimeRange(8*60+30, 60), want: true},
		{name: "overlaps end", other: NewTimeRange(9*60+30, 60), want: true},
		{name: "back to back before", other: NewTimeRange(8*60, 60), want: false},
		{name: "back to back after", other: NewTimeRange(10*60, 60), want: false},
		{name: "disjoint", other: NewTimeRange(14*60, 60), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nineToTen.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(nineToTen))
		})
	}
}

// sharesMinute is the brute-force reference: two half-open intervals
// intersect exactly when some minute belongs to both.
func sharesMinute(a, b TimeRange) bool {
	for m := a.Start; m < a.End; m++ {
		if b.Start <= m && m < b.End {
			return true
		}
	}
	return false
}

func TestTimeRangeOverlapsRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	randomRange := func() TimeRange {
		start := ClockTime(rng.Intn(int(EndOfDay) - MinAppointmentDuration))
		maxDur := int(EndOfDay-start) - MinAppointmentDuration
		if maxDur > MaxAppointmentDuration-MinAppointmentDuration {
			maxDur = MaxAppointmentDuration - MinAppointmentDuration
		}
		return NewTimeRange(start, MinAppointmentDuration+rng.Intn(maxDur+1))
	}

	for i := 0; i < 5000; i++ {
		a, b := randomRange(), randomRange()

		want := sharesMinute(a, b)
		assert.Equal(t, want, a.Overlaps(b), "a=%v b=%v", a, b)
		assert.Equal(t, a.Overlaps(b), b.Overlaps(a), "a=%v b=%v", a, b)
	}
}

func TestTimeRangeDuration(t *testing.T) {
	assert.Equal(t, 45, NewTimeRange(9*60, 45).Duration())
}

func TestEndOfDayBound(t *testing.T) {
	// A slot ending exactly at midnight is allowed; one past it is not.
	assert.Equal(t, EndOfDay, ClockTime(23*60).Add(60))
	assert.True(t, ClockTime(23*60).Add(61) > EndOfDay)
}

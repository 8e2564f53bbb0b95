// Package mockdata generates plausible demo metrics for the dashboard before
// a WHOOP account is connected. The shapes mirror the real data endpoints so
// the UI renders identically in demo and connected modes.
package mockdata

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Recovery zone boundaries, matching how WHOOP colors the dashboard.
const (
	greenFloor  = 67.0
	yellowFloor = 34.0
)

// WeeklyDay is one day of the demo weekly series.
type WeeklyDay struct {
	Date         string  `json:"date"`
	Recovery     float64 `json:"recovery"`
	Zone         string  `json:"zone"`
	TargetStrain float64 `json:"target_strain"`
	ActualStrain float64 `json:"actual_strain"`
}

// SleepNight is one night of the demo sleep series.
type SleepNight struct {
	ID              string  `json:"id"`
	Date            string  `json:"date"`
	Bedtime         string  `json:"bedtime"`
	WakeTime        string  `json:"wake_time"`
	DurationMilli   int64   `json:"duration_milli"`
	EfficiencyPct   float64 `json:"efficiency_pct"`
	ConsistencyMin  float64 `json:"consistency_min"`
	PerformancePct  float64 `json:"performance_pct"`
	RespiratoryRate float64 `json:"respiratory_rate"`
}

// ZoneFor maps a recovery score to its dashboard zone.
func ZoneFor(recovery float64) string {
	switch {
	case recovery >= greenFloor:
		return "green"
	case recovery >= yellowFloor:
		return "yellow"
	default:
		return "red"
	}
}

// TargetStrainFor returns a training target consistent with the recovery zone:
// high recovery invites high strain.
func TargetStrainFor(recovery float64) float64 {
	switch ZoneFor(recovery) {
	case "green":
		return randRange(12, 15)
	case "yellow":
		return randRange(8, 11)
	default:
		return randRange(3, 7)
	}
}

// WeeklySeries generates the last seven days of recovery and strain, newest
// day last.
func WeeklySeries() []WeeklyDay {
	return WeeklySeriesAt(time.Now())
}

// WeeklySeriesAt is WeeklySeries anchored at a fixed end day.
func WeeklySeriesAt(end time.Time) []WeeklyDay {
	days := make([]WeeklyDay, 0, 7)
	for i := 6; i >= 0; i-- {
		recovery := randRange(20, 98)
		target := TargetStrainFor(recovery)
		days = append(days, WeeklyDay{
			Date:         end.AddDate(0, 0, -i).Format("2006-01-02"),
			Recovery:     round1(recovery),
			Zone:         ZoneFor(recovery),
			TargetStrain: round1(target),
			ActualStrain: round1(clamp(target+randRange(-3, 3), 1, 21)),
		})
	}
	return days
}

// SleepSeries generates the last fourteen nights, newest night last.
func SleepSeries() []SleepNight {
	return SleepSeriesAt(time.Now())
}

// SleepSeriesAt is SleepSeries anchored at a fixed end day.
func SleepSeriesAt(end time.Time) []SleepNight {
	nights := make([]SleepNight, 0, 14)
	for i := 13; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)

		// Bedtime clusters around 23:00 the previous evening, within half
		// an hour either way.
		variation := randRange(-15, 15)
		bedtime := time.Date(day.Year(), day.Month(), day.Day(), 23, 0, 0, 0, day.Location()).
			AddDate(0, 0, -1).
			Add(time.Duration(randRange(-30, 30)) * time.Minute)
		duration := time.Duration(randRange(6, 9) * float64(time.Hour))

		nights = append(nights, SleepNight{
			ID:              uuid.NewString(),
			Date:            day.Format("2006-01-02"),
			Bedtime:         bedtime.Format(time.RFC3339),
			WakeTime:        bedtime.Add(duration).Format(time.RFC3339),
			DurationMilli:   duration.Milliseconds(),
			EfficiencyPct:   round1(randRange(75, 98)),
			ConsistencyMin:  round1(variation),
			PerformancePct:  round1(randRange(70, 100)),
			RespiratoryRate: round1(randRange(13, 18)),
		})
	}
	return nights
}

func randRange(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

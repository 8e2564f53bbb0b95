// Package whoop provides the authenticated WHOOP data client used by the
// dashboard. Every data request goes through the gateway in client.go, which
// owns the token lifecycle; this file holds the typed response shapes.
package whoop

import "fmt"

// Profile is the WHOOP user profile.
type Profile struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Recovery is one day's recovery measurement.
type Recovery struct {
	CycleID          int64   `json:"cycle_id"`
	Score            float64 `json:"score"`
	RestingHeartRate float64 `json:"resting_heart_rate"`
	HrvMilli         float64 `json:"hrv_rmssd_milli"`
	Date             string  `json:"date"`
}

// Strain is one physiological cycle's strain measurement.
type Strain struct {
	CycleID          int64   `json:"cycle_id"`
	Score            float64 `json:"score"`
	AverageHeartRate float64 `json:"average_heart_rate"`
	MaxHeartRate     float64 `json:"max_heart_rate"`
	Kilojoules       float64 `json:"kilojoule"`
	Date             string  `json:"date"`
}

// Sleep is one recorded sleep activity.
type Sleep struct {
	ID               string  `json:"id"`
	State            string  `json:"state"`
	ScoreState       string  `json:"score_state"`
	QualityDuration  int64   `json:"quality_duration_milli"`
	RespiratoryRate  float64 `json:"respiratory_rate"`
	SleepNeedMilli   int64   `json:"sleep_need_milli"`
	EfficiencyPct    float64 `json:"sleep_efficiency_percentage"`
	PerformancePct   float64 `json:"sleep_performance_percentage"`
	ConsistencyScore float64 `json:"sleep_consistency_percentage"`
	Date             string  `json:"date"`
}

// Workout is one recorded workout activity.
type Workout struct {
	ID               string  `json:"id"`
	SportID          int64   `json:"sport_id"`
	Strain           float64 `json:"strain"`
	AverageHeartRate float64 `json:"average_heart_rate"`
	MaxHeartRate     float64 `json:"max_heart_rate"`
	Kilojoules       float64 `json:"kilojoule"`
	Date             string  `json:"date"`
}

// recordCollection is the provider's envelope for date-ranged collections.
type recordCollection[T any] struct {
	Records []T `json:"records"`
}

// APIError carries a non-401 upstream failure with enough structure for the
// dashboard to render a message. The gateway interprets nothing beyond 401.
type APIError struct {
	// StatusCode is the upstream HTTP status.
	StatusCode int
	// Body is the raw upstream response body.
	Body string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("WHOOP API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Package observation models the records returned by the LCO site-proxy
// scheduler and translates them into calendar reservations and projects.
package observation

import "encoding/json"

// Lifecycle states an upstream observation can be in.
const (
	StatePending      = "PENDING"
	StateInProgress   = "IN_PROGRESS"
	StateNotAttempted = "NOT_ATTEMPTED"
	StateCompleted    = "COMPLETED"
	// StateCanceled happens when the observation is overwritten by a later schedule.
	StateCanceled = "CANCELED"
	StateAborted  = "ABORTED"
	StateFailed   = "FAILED"
)

// AllStates lists every known observation state, for read paths that want
// the full schedule rather than just the pending write set.
var AllStates = []string{
	StatePending,
	StateInProgress,
	StateNotAttempted,
	StateCompleted,
	StateCanceled,
	StateAborted,
	StateFailed,
}

// Observation types that get elevated scheduling priority.
const (
	TypeRapidResponse = "RAPID_RESPONSE"
	TypeTimeCritical  = "TIME_CRITICAL"
)

// Observation is one scheduled observation as reported by a site proxy.
// Fields whose presence matters for shape validation are pointers so that a
// missing key can be told apart from a zero value.
type Observation struct {
	ID              json.Number `json:"id"`
	Site            string      `json:"site"` // WEMA code, not a logical site
	Telescope       string      `json:"telescope"`
	Start           string      `json:"start"`
	End             string      `json:"end"`
	Submitter       string      `json:"submitter"`
	Created         string      `json:"created"`
	Modified        string      `json:"modified"`
	Name            string      `json:"name"`
	ObservationType string      `json:"observation_type"`
	State           string      `json:"state"`
	Request         *Request    `json:"request"`
}

// Request is the observation's request payload.
type Request struct {
	State          string          `json:"state"`
	Configurations []Configuration `json:"configurations"`
}

// Configuration is one observing configuration within a request.
type Configuration struct {
	Type              string             `json:"type"`
	Constraints       *Constraints       `json:"constraints"`
	InstrumentConfigs []InstrumentConfig `json:"instrument_configs"`
	Target            *Target            `json:"target"`
}

// Constraints are the observing constraints attached to a configuration.
type Constraints struct {
	MaxAirmass       *float64 `json:"max_airmass"`
	MaxLunarPhase    *float64 `json:"max_lunar_phase"`
	MinLunarDistance *float64 `json:"min_lunar_distance"`
}

// Target is the astronomical target of a configuration.
type Target struct {
	Name string   `json:"name,omitempty"`
	Type string   `json:"type,omitempty"`
	RA   *float64 `json:"ra"`
	Dec  *float64 `json:"dec"`
}

// InstrumentConfig describes one exposure set within a configuration.
type InstrumentConfig struct {
	ExposureCount   *int             `json:"exposure_count"`
	ExposureTime    *float64         `json:"exposure_time"`
	Mode            string           `json:"mode"`
	OpticalElements *OpticalElements `json:"optical_elements"`
	ExtraParams     *ExtraParams     `json:"extra_params"`
}

// OpticalElements holds the optical element selection for an exposure set.
type OpticalElements struct {
	Filter string `json:"filter"`
}

// ExtraParams carries the pointing offsets and focus parameters.
type ExtraParams struct {
	OffsetRA     *float64 `json:"offset_ra"`
	OffsetDec    *float64 `json:"offset_dec"`
	RotatorAngle *float64 `json:"rotator_angle"`
	Defocus      *float64 `json:"defocus,omitempty"`
}

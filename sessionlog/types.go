package sessionlog

import (
	"errors"
	"math"
	"strings"
)

// Missing marks a scalar field that was absent or empty in the source log.
const Missing = "NULL"

// Identity labels read from the log header.
const (
	LabelName   = "NAME"
	LabelAge    = "AGE"
	LabelGender = "GENDER"
	LabelDate   = "REPORT_DAY"
)

// ErrInvalidChannel is returned in strict mode when a PM channel is present but not numeric.
var ErrInvalidChannel = errors.New("invalid PM channel value")

// Channel is one of the six PM signal names recorded per session step.
type Channel string

const (
	Stress   Channel = "stress"
	Engage   Channel = "engage"
	Relax    Channel = "relax"
	Excite   Channel = "excite"
	Interest Channel = "interest"
	Focus    Channel = "focus"
)

// Channels returns the fixed channel order used in every output.
func Channels() []Channel {
	return []Channel{Stress, Engage, Relax, Excite, Interest, Focus}
}

// Label returns the source label for the channel, e.g. "PM_Stress".
func (c Channel) Label() string {
	s := string(c)
	if s == "" {
		return "PM_"
	}
	return "PM_" + strings.ToUpper(s[:1]) + s[1:]
}

// IsChannel reports whether key names one of the six channels.
func IsChannel(key string) bool {
	for _, c := range Channels() {
		if string(c) == key {
			return true
		}
	}
	return false
}

// ValueState distinguishes how a channel reading was obtained.
type ValueState int

const (
	Absent ValueState = iota
	Valid
	Invalid
)

func (s ValueState) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "absent"
	}
}

// Reading is the result of looking up one channel in a segment body.
// Value follows the lossy rule (first numeric occurrence, else 0) regardless of State.
type Reading struct {
	Value float64
	State ValueState
	Raw   string
	found bool
}

// StepMetrics holds the six PM channel values for one retained step.
type StepMetrics struct {
	Stress   float64
	Engage   float64
	Relax    float64
	Excite   float64
	Interest float64
	Focus    float64
}

// Get returns the value for c; unknown channels read as 0.
func (m StepMetrics) Get(c Channel) float64 {
	switch c {
	case Stress:
		return m.Stress
	case Engage:
		return m.Engage
	case Relax:
		return m.Relax
	case Excite:
		return m.Excite
	case Interest:
		return m.Interest
	case Focus:
		return m.Focus
	default:
		return 0
	}
}

// With returns a copy of m with channel c set to v.
func (m StepMetrics) With(c Channel, v float64) StepMetrics {
	switch c {
	case Stress:
		m.Stress = v
	case Engage:
		m.Engage = v
	case Relax:
		m.Relax = v
	case Excite:
		m.Excite = v
	case Interest:
		m.Interest = v
	case Focus:
		m.Focus = v
	}
	return m
}

// Map returns exactly six channel keys.
func (m StepMetrics) Map() map[string]float64 {
	out := make(map[string]float64, 6)
	for _, c := range Channels() {
		out[string(c)] = m.Get(c)
	}
	return out
}

// Clamped returns m with every channel limited to [0,1]. NaN becomes 0.
func (m StepMetrics) Clamped() StepMetrics {
	for _, c := range Channels() {
		m = m.With(c, Clamp01(m.Get(c)))
	}
	return m
}

// Sub returns m - o channel by channel.
func (m StepMetrics) Sub(o StepMetrics) StepMetrics {
	for _, c := range Channels() {
		m = m.With(c, m.Get(c)-o.Get(c))
	}
	return m
}

// Clamp01 limits v to [0,1].
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Segment is one fenced "-----STEP.<Name>-----" block.
type Segment struct {
	Name string
	Body string
}

// Issue records a channel that was present but not a clean number.
type Issue struct {
	Segment string  `json:"segment"`
	Channel Channel `json:"channel"`
	Raw     string  `json:"raw"`
	Used    float64 `json:"used"`
}

// Diagnostics collects non-fatal parse findings for one log.
type Diagnostics struct {
	Issues          []Issue  `json:"issues,omitempty"`
	DroppedSegments []string `json:"dropped_segments,omitempty"`
	MissingStages   []string `json:"missing_stages,omitempty"`
}

// Empty reports whether nothing was recorded.
func (d Diagnostics) Empty() bool {
	return len(d.Issues) == 0 && len(d.DroppedSegments) == 0 && len(d.MissingStages) == 0
}

// Package eegreport derives composite indices, keyword tags and readable
// notes from participant reports produced by package sessionlog.
package eegreport

import (
	"math"

	"github.com/emotion-eeg/eeg-report/sessionlog"
)

// Indices are the five composite scores computed from one stage. All values are in [0,1].
type Indices struct {
	CognitiveLoad       float64 `json:"cognitive_load"`
	AffectivePositivity float64 `json:"affective_positivity"`
	DirectedFocus       float64 `json:"directed_focus"`
	RelaxArousalBalance float64 `json:"relax_arousal_balance"`
	OverallEngagement   float64 `json:"overall_engagement"`
}

// IndexNames are the machine names in Values order.
func IndexNames() []string {
	return []string{"cognitive_load", "affective_positivity", "directed_focus", "relax_arousal_balance", "overall_engagement"}
}

// IndexLabels are the chart labels in Values order.
func IndexLabels() []string {
	return []string{"인지 부하", "정서적 긍정성", "주도적 집중", "이완-활력 균형", "종합 몰입도"}
}

// ComputeIndices clamps the six metrics to [0,1], applies the fixed formulas
// and clamps each result to [0,1].
func ComputeIndices(m sessionlog.StepMetrics) Indices {
	c := m.Clamped()
	return Indices{
		CognitiveLoad:       sessionlog.Clamp01((c.Stress + (1 - c.Relax)) / 2),
		AffectivePositivity: sessionlog.Clamp01((c.Interest + c.Excite - c.Stress) / 3),
		DirectedFocus:       sessionlog.Clamp01(0.6*c.Engage + 0.4*c.Focus),
		RelaxArousalBalance: sessionlog.Clamp01(1 - math.Abs(c.Relax-c.Excite)),
		OverallEngagement:   sessionlog.Clamp01((c.Engage + c.Focus + c.Interest) / 3),
	}
}

// Values returns the indices in IndexNames order.
func (ix Indices) Values() []float64 {
	return []float64{ix.CognitiveLoad, ix.AffectivePositivity, ix.DirectedFocus, ix.RelaxArousalBalance, ix.OverallEngagement}
}

// StageIndices pairs a stage with its indices.
type StageIndices struct {
	Stage   string                 `json:"stage"`
	Metrics sessionlog.StepMetrics `json:"-"`
	Indices Indices                `json:"indices"`
}

// ParticipantIndices computes indices for every stage in order.
func ParticipantIndices(p sessionlog.Participant) []StageIndices {
	out := make([]StageIndices, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, StageIndices{Stage: s.Name, Metrics: s.Metrics, Indices: ComputeIndices(s.Metrics)})
	}
	return out
}

package eegreport

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotion-eeg/eeg-report/sessionlog"
)

func TestComputeIndicesFormulas(t *testing.T) {
	m := sessionlog.StepMetrics{Stress: 0.4, Engage: 0.6, Relax: 0.5, Excite: 0.3, Interest: 0.6, Focus: 0.6}
	ix := ComputeIndices(m)

	assert.InDelta(t, (0.4+0.5)/2, ix.CognitiveLoad, 1e-9)
	assert.InDelta(t, (0.6+0.3-0.4)/3, ix.AffectivePositivity, 1e-9)
	assert.InDelta(t, 0.6*0.6+0.4*0.6, ix.DirectedFocus, 1e-9)
	assert.InDelta(t, 1-0.2, ix.RelaxArousalBalance, 1e-9)
	assert.InDelta(t, (0.6+0.6+0.6)/3, ix.OverallEngagement, 1e-9)
}

func TestComputeIndicesClampsNegativePositivity(t *testing.T) {
	ix := ComputeIndices(sessionlog.StepMetrics{Stress: 1})
	assert.Equal(t, 0.0, ix.AffectivePositivity)
	assert.Equal(t, 1.0, ix.CognitiveLoad)
}

func TestComputeIndicesClampsInputs(t *testing.T) {
	ix := ComputeIndices(sessionlog.StepMetrics{Stress: 5, Relax: -3, Engage: 2, Focus: 2, Interest: 2, Excite: 2})
	for i, v := range ix.Values() {
		assert.GreaterOrEqual(t, v, 0.0, IndexNames()[i])
		assert.LessOrEqual(t, v, 1.0, IndexNames()[i])
	}
	assert.Equal(t, 1.0, ix.DirectedFocus)
}

func TestComputeIndicesStayInUnitRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 5000; i++ {
		m := sessionlog.StepMetrics{
			Stress:   rng.Float64(),
			Engage:   rng.Float64(),
			Relax:    rng.Float64(),
			Excite:   rng.Float64(),
			Interest: rng.Float64(),
			Focus:    rng.Float64(),
		}
		for j, v := range ComputeIndices(m).Values() {
			if v < 0 || v > 1 {
				t.Fatalf("index %s out of range for %+v: %v", IndexNames()[j], m, v)
			}
		}
	}
}

func TestParticipantIndicesFollowsStageOrder(t *testing.T) {
	p, _ := sessionlog.Parse("-----STEP.Step3-----\nPM_Engage: 1\n-----STEP.Step1-----\nPM_Engage: 0.5\n")
	got := ParticipantIndices(p)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"step2", "step3", "step4"}, []string{got[0].Stage, got[1].Stage, got[2].Stage})
	assert.InDelta(t, 0.3, got[0].Indices.DirectedFocus, 1e-9)
	assert.InDelta(t, 0.6, got[2].Indices.DirectedFocus, 1e-9)
	assert.Len(t, IndexLabels(), len(IndexNames()))
}

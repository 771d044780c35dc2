// Package augment produces synthetic participant variants for building
// summarisation training sets.
package augment

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/emotion-eeg/eeg-report/sessionlog"
)

// Options controls variant generation.
type Options struct {
	// Count is the number of variants to produce.
	Count int
	// Spread is the maximum absolute jitter applied to every channel.
	Spread float64
	// Seed makes the output reproducible.
	Seed uint64
	// Precision is the number of decimals kept; 0 means 4.
	Precision int
}

// DefaultSpread is used when Options.Spread is not positive.
const DefaultSpread = 0.15

// Variant is one synthetic participant with its report key.
type Variant struct {
	ID          string
	Participant sessionlog.Participant
}

// Generate jitters every channel of base by up to ±Spread, clamps to [0,1]
// and copies identity and aux fields. IDs are participant_aug_1..Count.
// The same base and options always yield the same variants.
func Generate(base sessionlog.Participant, opts Options) []Variant {
	if opts.Count <= 0 {
		return nil
	}
	spread := opts.Spread
	if spread <= 0 {
		spread = DefaultSpread
	}
	prec := opts.Precision
	if prec <= 0 {
		prec = 4
	}
	scale := math.Pow(10, float64(prec))
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	out := make([]Variant, 0, opts.Count)
	for i := 1; i <= opts.Count; i++ {
		p := sessionlog.Participant{
			Name:      "aug_" + strconv.Itoa(i),
			BasicInfo: base.BasicInfo,
			Steps:     make(sessionlog.Stages, 0, len(base.Steps)),
		}
		for _, s := range base.Steps {
			m := s.Metrics
			for _, c := range sessionlog.Channels() {
				v := m.Get(c) + (rng.Float64()*2-1)*spread
				v = math.Round(sessionlog.Clamp01(v)*scale) / scale
				m = m.With(c, v)
			}
			s.Metrics = m
			p.Steps = append(p.Steps, s)
		}
		out = append(out, Variant{ID: sessionlog.AugmentedID(i), Participant: p})
	}
	return out
}

// Into adds the variants to r and returns the ids that were added.
// Existing keys are never overwritten.
func Into(r sessionlog.Report, variants []Variant) []string {
	added := make([]string, 0, len(variants))
	for _, v := range variants {
		if _, exists := r[v.ID]; exists {
			continue
		}
		r[v.ID] = v.Participant
		added = append(added, v.ID)
	}
	return added
}

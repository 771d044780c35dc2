package sessionlog

// StageRule maps one source segment to an output stage and names the
// game-data field that travels with it.
type StageRule struct {
	Source   string // segment name in the log, e.g. "Step1"
	Stage    string // output key, e.g. "step2"
	AuxLabel string // label of the categorical game-data line
	AuxKey   string // JSON key for the categorical value
}

// Layout is an ordered, immutable set of stage rules.
type Layout struct {
	rules []StageRule
}

// NewLayout copies rules into a Layout. Order is preserved in every output.
func NewLayout(rules ...StageRule) Layout {
	return Layout{rules: append([]StageRule(nil), rules...)}
}

// DefaultLayout is the one-position shift used by the VR sessions:
// the log's Step1..Step3 become step2..step4.
func DefaultLayout() Layout {
	return NewLayout(
		StageRule{Source: "Step1", Stage: "step2", AuxLabel: "STEP1_EMOTION_COLOR", AuxKey: "emotion_color"},
		StageRule{Source: "Step2", Stage: "step3", AuxLabel: "STEP2_FILL_RATE", AuxKey: "fill_rate"},
		StageRule{Source: "Step3", Stage: "step4", AuxLabel: "STEP3_FILL_RATE", AuxKey: "fill_rate"},
	)
}

// Rules returns a copy of the rules in order.
func (l Layout) Rules() []StageRule {
	return append([]StageRule(nil), l.rules...)
}

// Lookup finds the rule for a source segment name.
func (l Layout) Lookup(source string) (StageRule, bool) {
	for _, r := range l.rules {
		if r.Source == source {
			return r, true
		}
	}
	return StageRule{}, false
}

// Stages returns the output stage names in order.
func (l Layout) Stages() []string {
	out := make([]string, 0, len(l.rules))
	for _, r := range l.rules {
		out = append(out, r.Stage)
	}
	return out
}

// Len returns the number of rules.
func (l Layout) Len() int { return len(l.rules) }

package eegreport

import (
	"math"
	"strings"

	"github.com/emotion-eeg/eeg-report/sessionlog"
)

const (
	valenceHigh, valenceLow = 0.60, 0.40
	arousalHigh, arousalLow = 0.65, 0.35
	teHigh, teLow           = 0.70, 0.40

	undecidedEmotion = "미정"
)

// emotionIntensity maps emotion color x fill rate to a refined emotion word.
func emotionIntensity(color, fill string) (string, bool) {
	table := map[string]map[string]string{
		"Happy":    {"Full": "신남", "High": "기쁨", "Half": "편안", "Low": "만족"},
		"Surprise": {"Full": "충격", "High": "놀람", "Half": "긴장", "Low": "어이없는"},
		"Sad":      {"Full": "절망", "High": "슬픔", "Half": "걱정", "Low": "속상"},
		"Fear":     {"Full": "공포", "High": "두려움", "Half": "겁나는", "Low": "불안"},
		"Angry":    {"Full": "분노가득", "High": "화남", "Half": "짜증", "Low": "섭섭함"},
		"Disgust":  {"Full": "역겨움", "High": "너무싫음", "Half": "싫증남", "Low": "지겨움"},
	}
	label, ok := table[color][fill]
	return label, ok
}

// StageWeight gives later stages more influence on the weighted scores.
type StageWeight struct {
	Stage  string
	Weight float64
}

// DefaultStageWeights weights step2..step4 as 0.2/0.3/0.5.
func DefaultStageWeights() []StageWeight {
	return []StageWeight{{"step2", 0.2}, {"step3", 0.3}, {"step4", 0.5}}
}

// KeywordSet is the tagging result for one participant.
type KeywordSet struct {
	ParticipantID  string   `json:"participant_id"`
	Emotion        string   `json:"emotion"`
	Valence        float64  `json:"valence"`
	Arousal        float64  `json:"arousal"`
	TaskEngagement float64  `json:"task_engagement"`
	Tags           []string `json:"tags"`
}

// Keywords tags a participant with emotion, valence, arousal and
// engagement-focus keywords using the default stage weights.
func Keywords(id string, p sessionlog.Participant) KeywordSet {
	return KeywordsWeighted(id, p, DefaultStageWeights())
}

// KeywordsWeighted is Keywords with explicit stage weights. Stages missing
// from p are skipped and the remaining weights renormalised.
func KeywordsWeighted(id string, p sessionlog.Participant, weights []StageWeight) KeywordSet {
	emotion := emotionLabel(p)
	ks := KeywordSet{
		ParticipantID:  id,
		Emotion:        emotion,
		Valence:        weightedMetric(p, weights, valence),
		Arousal:        weightedMetric(p, weights, arousal),
		TaskEngagement: weightedMetric(p, weights, taskEngagement),
	}
	ks.Tags = []string{
		"#감정_" + emotion,
		valenceTag(ks.Valence),
		arousalTag(ks.Arousal),
		teTag(ks.TaskEngagement),
	}
	return ks
}

// String joins the tags with spaces.
func (k KeywordSet) String() string {
	return strings.Join(k.Tags, " ")
}

func emotionLabel(p sessionlog.Participant) string {
	base := auxValue(p, 0)
	fill := auxValue(p, 1)
	if label, ok := emotionIntensity(base, fill); ok {
		return label
	}
	if base != "" {
		return base
	}
	return undecidedEmotion
}

// auxValue returns the i-th stage's aux value with the missing sentinel blanked.
func auxValue(p sessionlog.Participant, i int) string {
	if i >= len(p.Steps) {
		return ""
	}
	v := strings.TrimSpace(p.Steps[i].AuxValue)
	if v == sessionlog.Missing {
		return ""
	}
	return v
}

func valence(m sessionlog.StepMetrics) float64 {
	return (m.Excite + m.Interest + m.Engage - m.Stress) / 4.0
}

func arousal(m sessionlog.StepMetrics) float64 {
	return (m.Excite + m.Engage + m.Focus - m.Relax) / 3.0
}

// taskEngagement is the geometric mean of engage and focus.
func taskEngagement(m sessionlog.StepMetrics) float64 {
	return math.Sqrt(math.Max(0, m.Engage) * math.Max(0, m.Focus))
}

func weightedMetric(p sessionlog.Participant, weights []StageWeight, f func(sessionlog.StepMetrics) float64) float64 {
	var total, sum float64
	for _, w := range weights {
		st, ok := p.Stage(w.Stage)
		if !ok {
			continue
		}
		total += f(st.Metrics) * w.Weight
		sum += w.Weight
	}
	if sum <= 0 {
		return 0
	}
	return total / sum
}

func valenceTag(v float64) string {
	switch {
	case v >= valenceHigh:
		return "#정서_긍정"
	case v <= valenceLow:
		return "#정서_부정"
	default:
		return "#정서_평온"
	}
}

func arousalTag(v float64) string {
	switch {
	case v >= arousalHigh:
		return "#활성_높음"
	case v <= arousalLow:
		return "#활성_낮음"
	default:
		return "#활성_보통"
	}
}

func teTag(v float64) string {
	switch {
	case v >= teHigh:
		return "#몰입집중_강함"
	case v <= teLow:
		return "#몰입집중_약함"
	default:
		return "#몰입집중_보통"
	}
}

// ReportKeywords tags every participant in id order.
func ReportKeywords(r sessionlog.Report) []KeywordSet {
	out := make([]KeywordSet, 0, len(r))
	for _, id := range r.IDs() {
		out = append(out, Keywords(id, r[id]))
	}
	return out
}

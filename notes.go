package eegreport

import (
	"fmt"
	"strings"

	"github.com/emotion-eeg/eeg-report/sessionlog"
)

// BuildNotes turns a participant report into a readable session summary.
func BuildNotes(id string, p sessionlog.Participant) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Participant: %s\n", id)
	fmt.Fprintf(
		&b,
		"Age %s | Gender %s | Date %s\n",
		p.BasicInfo.Age,
		p.BasicInfo.Gender,
		p.BasicInfo.Date,
	)

	if len(p.Steps) == 0 {
		b.WriteString("\nNo stage data.\n")
		return strings.TrimSpace(b.String())
	}

	b.WriteString("\nStage Metrics\n")
	for _, s := range p.Steps {
		m := s.Metrics
		fmt.Fprintf(
			&b,
			"- %s (%s=%s): stress %.2f | engage %.2f | relax %.2f | excite %.2f | interest %.2f | focus %.2f\n",
			s.Name,
			s.AuxKey,
			s.AuxValue,
			m.Stress,
			m.Engage,
			m.Relax,
			m.Excite,
			m.Interest,
			m.Focus,
		)
	}

	first := p.Steps[0]
	last := p.Steps[len(p.Steps)-1]
	final := ComputeIndices(last.Metrics)

	fmt.Fprintf(&b, "\nComposite Indices (%s)\n", last.Name)
	labels := IndexLabels()
	for i, v := range final.Values() {
		fmt.Fprintf(&b, "- %s: %.0f\n", labels[i], v*100)
	}

	if len(p.Steps) > 1 {
		d := last.Metrics.Sub(first.Metrics)
		fmt.Fprintf(&b, "\nTrend (%s - %s)\n", last.Name, first.Name)
		fmt.Fprintf(
			&b,
			"- stress %+.2f | engage %+.2f | relax %+.2f | excite %+.2f | interest %+.2f | focus %+.2f\n",
			d.Stress,
			d.Engage,
			d.Relax,
			d.Excite,
			d.Interest,
			d.Focus,
		)
	}

	kw := Keywords(id, p)
	b.WriteString("\nKeywords\n")
	fmt.Fprintf(&b, "- %s\n", kw.String())
	fmt.Fprintf(&b, "- valence %.2f | arousal %.2f | engagement-focus %.2f\n", kw.Valence, kw.Arousal, kw.TaskEngagement)

	b.WriteString("\nAssessment\n- ")
	b.WriteString(stateAssessment(kw, final))
	b.WriteByte('\n')

	return strings.TrimSpace(b.String())
}

func stateAssessment(kw KeywordSet, final Indices) string {
	switch {
	case kw.Valence >= valenceHigh && kw.TaskEngagement >= teHigh:
		return "Positive affect with strong engagement and focus through the later stages."
	case kw.Valence <= valenceLow && final.CognitiveLoad >= 0.6:
		return "Negative affect with elevated cognitive load in the final stage; stress outweighed relaxation."
	case kw.Arousal >= arousalHigh:
		return "High activation across the session with a lively emotional response."
	case kw.Arousal <= arousalLow:
		return "Low activation; the participant stayed calm with limited excitement."
	default:
		return "Balanced emotional state with moderate activation and engagement."
	}
}

// BuildReportNotes concatenates notes for every participant in id order.
func BuildReportNotes(r sessionlog.Report) string {
	parts := make([]string, 0, len(r))
	for _, id := range r.IDs() {
		parts = append(parts, BuildNotes(id, r[id]))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

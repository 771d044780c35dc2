package llmexport

import (
	"fmt"
	"strings"

	"github.com/emotion-eeg/eeg-report/sessionlog"
)

const systemPrompt = "너는 VR 감정/EEG 데이터를 2~3문장으로 요약하는 한국어 보고서 작성 도우미다. " +
	"반드시 보고서형 어체를 사용하고, 과장·추측을 피하며, 입력된 지표(최종값과 변화)를 반영한다. " +
	"인지/몰입·각성/관여·조절/안정 각 그룹에서 1개씩 대표 지표를 선택해 기술하고, 전반적인 상태를 포함하라."

const (
	userIntro        = "다음 정보를 바탕으로 2~3문장 한국어 보고서 톤으로 요약하세요.\n"
	userRequirements = "요건: 2~3문장, 보고서형 어체(…로 해석됩니다/보입니다), 핵심 요소(감정·신체감각·최종 EEG·변화·복합지표)를 반드시 포함."
)

// BuildPrompt renders the system and user turns for one participant.
// The final metrics are the last stage and the trend is last minus first.
func BuildPrompt(id string, p sessionlog.Participant) Record {
	return Record{
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent(p)},
		},
		Meta: Meta{ParticipantID: id, Policy: PolicyInference},
	}
}

// WithAnswer turns r into a training record.
func (r Record) WithAnswer(answer string) Record {
	msgs := make([]Message, 0, len(r.Messages)+1)
	msgs = append(msgs, r.Messages...)
	msgs = append(msgs, Message{Role: "assistant", Content: answer})
	r.Messages = msgs
	r.Meta.Policy = PolicyTrain
	return r
}

func userContent(p sessionlog.Participant) string {
	var b strings.Builder
	b.WriteString(userIntro)
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "- %s.%s: %s\n", s.Name, s.AuxKey, s.AuxValue)
	}

	var first, final sessionlog.StepMetrics
	finalName, firstName := "final", "first"
	if n := len(p.Steps); n > 0 {
		first, final = p.Steps[0].Metrics, p.Steps[n-1].Metrics
		firstName, finalName = p.Steps[0].Name, p.Steps[n-1].Name
	}
	d := final.Sub(first)

	fmt.Fprintf(
		&b,
		"- EEG(final=%s): stress=%.2f, engage=%.2f, relax=%.2f, excite=%.2f, interest=%.2f, focus=%.2f\n",
		finalName, final.Stress, final.Engage, final.Relax, final.Excite, final.Interest, final.Focus,
	)
	fmt.Fprintf(
		&b,
		"- EEG(trend = %s - %s): d_stress=%+.2f, d_engage=%+.2f, d_relax=%+.2f, d_excite=%+.2f, d_interest=%+.2f, d_focus=%+.2f\n",
		finalName, firstName, d.Stress, d.Engage, d.Relax, d.Excite, d.Interest, d.Focus,
	)
	b.WriteString(userRequirements)
	return b.String()
}

// BuildRecords renders one record per participant in id order. Participants
// with a label get an assistant turn and the training policy.
func BuildRecords(r sessionlog.Report, labels map[string]string) []Record {
	out := make([]Record, 0, len(r))
	for _, id := range r.IDs() {
		rec := BuildPrompt(id, r[id])
		if answer, ok := labels[id]; ok && strings.TrimSpace(answer) != "" {
			rec = rec.WithAnswer(strings.TrimSpace(answer))
		}
		out = append(out, rec)
	}
	return out
}

// CountTraining returns how many records carry an assistant answer.
func CountTraining(records []Record) int {
	n := 0
	for _, r := range records {
		if r.Meta.Policy == PolicyTrain {
			n++
		}
	}
	return n
}

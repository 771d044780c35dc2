// Package sessionlog extracts participant reports from VR/EEG session logs.
//
// A log is plain text made of "LABEL: value" lines and fenced step segments:
//
//	NAME: kim
//	AGE: 34
//	STEP1_EMOTION_COLOR: Happy
//	-----STEP.Step1-----
//	PM_Stress: 0.42
//	PM_Engage: 0.61
//
// Parsing never fails on malformed content unless strict mode is requested:
// absent labels become Missing and absent or unparseable channels become 0.
package sessionlog

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	segmentFence = regexp.MustCompile(`-{5,}STEP\.([A-Za-z0-9_]+)-{5,}`)
	channelRules = compileChannelRules()
)

type channelRule struct {
	channel Channel
	number  *regexp.Regexp
	token   *regexp.Regexp
}

func compileChannelRules() []channelRule {
	out := make([]channelRule, 0, 6)
	for _, c := range Channels() {
		label := regexp.QuoteMeta(c.Label())
		out = append(out, channelRule{
			channel: c,
			number:  regexp.MustCompile(label + `\s*:\s*([0-9]*\.?[0-9]+)`),
			token:   regexp.MustCompile(label + `\s*:[ \t]*(\S*)`),
		})
	}
	return out
}

func ruleFor(c Channel) (channelRule, bool) {
	for _, r := range channelRules {
		if r.channel == c {
			return r, true
		}
	}
	return channelRule{}, false
}

// ExtractLineValue returns the trimmed value of the first line shaped
// "LABEL : value" (case-sensitive, flexible whitespace). Absent labels and
// empty values yield Missing. Later duplicates are ignored.
func ExtractLineValue(label, text string) string {
	lab := strings.TrimSpace(label)
	if lab == "" {
		return Missing
	}
	re, err := regexp.Compile(`^\s*` + regexp.QuoteMeta(lab) + `\b\s*:\s*(.*)$`)
	if err != nil {
		return Missing
	}
	for _, line := range strings.Split(text, "\n") {
		m := re.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			return v
		}
		return Missing
	}
	return Missing
}

// ExtractField finds "LABEL: value" anywhere in text, not only at line start.
// It is used for the game-data fields that may share a line with other output.
// The value never continues onto the next line.
func ExtractField(label, text string) string {
	lab := strings.TrimSpace(label)
	if lab == "" {
		return Missing
	}
	re, err := regexp.Compile(regexp.QuoteMeta(lab) + `[ \t]*:[ \t]*(.*)`)
	if err != nil {
		return Missing
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return Missing
	}
	if v := strings.TrimSpace(m[1]); v != "" {
		return v
	}
	return Missing
}

// ExtractSegments returns every STEP segment in document order. A body runs
// from its fence to the next fence or the end of input; leading whitespace is
// dropped. Text without fences yields an empty slice.
func ExtractSegments(text string) []Segment {
	locs := segmentFence.FindAllStringSubmatchIndex(text, -1)
	out := make([]Segment, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, Segment{
			Name: text[loc[2]:loc[3]],
			Body: strings.TrimLeft(text[loc[1]:end], " \t\r\n\f\v"),
		})
	}
	return out
}

// ReadChannel looks up the first "PM_<Channel>: <number>" in body.
//
// Value is the first numeric occurrence, or 0. State is Absent when the label
// never appears, Valid when the first labelled occurrence is a clean number and
// Invalid otherwise.
func ReadChannel(body string, c Channel) Reading {
	rule, ok := ruleFor(c)
	if !ok {
		return Reading{}
	}
	tok := rule.token.FindStringSubmatchIndex(body)
	if tok == nil {
		return Reading{}
	}
	r := Reading{State: Invalid, Raw: body[tok[2]:tok[3]]}

	num := rule.number.FindStringSubmatchIndex(body)
	if num == nil {
		return r
	}
	v, err := strconv.ParseFloat(body[num[2]:num[3]], 64)
	if err != nil || math.IsInf(v, 0) {
		return r
	}
	r.Value = v
	r.found = true
	if num[0] == tok[0] && body[num[2]:num[3]] == r.Raw {
		r.State = Valid
	}
	return r
}

// Normalize converts a segment body into the canonical six-channel record.
// Channels that are absent or unparseable read as 0.
func Normalize(body string) (StepMetrics, []Issue) {
	m, _, issues := normalize("", body)
	return m, issues
}

func normalize(segment, body string) (StepMetrics, bool, []Issue) {
	var (
		m      StepMetrics
		found  bool
		issues []Issue
	)
	for _, c := range Channels() {
		r := ReadChannel(body, c)
		if r.found {
			found = true
		}
		if r.State == Invalid {
			issues = append(issues, Issue{Segment: segment, Channel: c, Raw: r.Raw, Used: r.Value})
		}
		m = m.With(c, r.Value)
	}
	return m, found, issues
}

// Remap keeps the segments named by layout and keys them by output stage.
// Other segments (Breathe, Crosshair, PreStep*) are dropped. When a source
// name repeats, the first segment carrying any PM value wins. Stages with no
// such segment are absent from the result.
func Remap(segments []Segment, layout Layout) map[string]StepMetrics {
	out, _, _ := remap(segments, layout)
	return out
}

// remap also reports which stages had a retained segment at all, with or
// without PM values.
func remap(segments []Segment, layout Layout) (map[string]StepMetrics, map[string]bool, Diagnostics) {
	out := make(map[string]StepMetrics, layout.Len())
	present := make(map[string]bool, layout.Len())
	var diag Diagnostics
	for _, seg := range segments {
		rule, ok := layout.Lookup(seg.Name)
		if !ok {
			diag.DroppedSegments = append(diag.DroppedSegments, seg.Name)
			continue
		}
		present[rule.Stage] = true
		if _, done := out[rule.Stage]; done {
			continue
		}
		m, found, issues := normalize(seg.Name, seg.Body)
		diag.Issues = append(diag.Issues, issues...)
		if !found {
			continue
		}
		out[rule.Stage] = m
	}
	return out, present, diag
}

// ParseOptions tunes Parser behaviour.
type ParseOptions struct {
	// Strict turns present-but-invalid channel values into ErrInvalidChannel.
	Strict bool
}

// Parser assembles Participant records for a fixed layout.
type Parser struct {
	layout Layout
	opts   ParseOptions
}

// NewParser returns a Parser. An empty layout falls back to DefaultLayout.
func NewParser(layout Layout, opts ParseOptions) *Parser {
	if layout.Len() == 0 {
		layout = DefaultLayout()
	}
	return &Parser{layout: layout, opts: opts}
}

// Layout returns the parser's stage layout.
func (p *Parser) Layout() Layout { return p.layout }

// Parse builds one Participant from a raw log. Every stage of the layout is
// present in the result. A stage whose segment is absent is all-zero with a
// Missing aux value; a segment without PM values is all-zero but keeps its aux.
func (p *Parser) Parse(text string) (Participant, Diagnostics, error) {
	metrics, present, diag := remap(ExtractSegments(text), p.layout)

	part := Participant{
		Name: ExtractLineValue(LabelName, text),
		BasicInfo: BasicInfo{
			Age:    ExtractLineValue(LabelAge, text),
			Gender: ExtractLineValue(LabelGender, text),
			Date:   ExtractLineValue(LabelDate, text),
		},
		Steps: make(Stages, 0, p.layout.Len()),
	}
	for _, rule := range p.layout.Rules() {
		m := metrics[rule.Stage]
		aux := Missing
		if present[rule.Stage] {
			aux = ExtractField(rule.AuxLabel, text)
		} else {
			diag.MissingStages = append(diag.MissingStages, rule.Stage)
		}
		part.Steps = append(part.Steps, Stage{
			Name:     rule.Stage,
			AuxKey:   rule.AuxKey,
			AuxValue: aux,
			Metrics:  m,
		})
	}

	if p.opts.Strict && len(diag.Issues) > 0 {
		first := diag.Issues[0]
		return Participant{}, diag, fmt.Errorf("%w: %s in segment %s: %q", ErrInvalidChannel, first.Channel.Label(), first.Segment, first.Raw)
	}
	return part, diag, nil
}

// Parse uses the default layout in lossy mode.
func Parse(text string) (Participant, Diagnostics) {
	part, diag, _ := NewParser(DefaultLayout(), ParseOptions{}).Parse(text)
	return part, diag
}

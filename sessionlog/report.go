package sessionlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const participantPrefix = "participant_"

// BasicInfo holds the identity fields; each is a value or Missing.
type BasicInfo struct {
	Age    string `json:"age"`
	Gender string `json:"gender"`
	Date   string `json:"date"`
}

// Stage is one remapped step with its categorical game-data field.
type Stage struct {
	Name     string
	AuxKey   string
	AuxValue string
	Metrics  StepMetrics
}

// MarshalJSON writes the aux field first, then the six channels in fixed order.
func (s Stage) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	if s.AuxKey != "" {
		if err := writeKV(&b, s.AuxKey, s.AuxValue); err != nil {
			return nil, err
		}
		b.WriteByte(',')
	}
	for i, c := range Channels() {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeKV(&b, string(c), s.Metrics.Get(c)); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON accepts any key order. Missing channels read as 0; the first
// non-channel string key (by name) becomes the aux field.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Stage
	out.Name = s.Name
	for _, c := range Channels() {
		v, ok := raw[string(c)]
		if !ok || string(v) == "null" {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("channel %s: %w", c, err)
		}
		out.Metrics = out.Metrics.With(c, f)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		if !IsChannel(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		var v string
		if err := json.Unmarshal(raw[k], &v); err != nil {
			continue
		}
		out.AuxKey, out.AuxValue = k, v
		break
	}
	*s = out
	return nil
}

// Stages keeps stage order through JSON round trips.
type Stages []Stage

// MarshalJSON writes an object keyed by stage name in slice order.
func (st Stages) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, s := range st {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeKV(&b, s.Name, s); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON reads the stage object preserving document order.
func (st *Stages) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("steps: expected object")
	}
	var out Stages
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)
		s := Stage{Name: name}
		if err := dec.Decode(&s); err != nil {
			return fmt.Errorf("steps.%s: %w", name, err)
		}
		out = append(out, s)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*st = out
	return nil
}

// Participant is the assembled report for one log file.
type Participant struct {
	Name      string    `json:"-"`
	BasicInfo BasicInfo `json:"basic_info"`
	Steps     Stages    `json:"steps"`
}

// Stage returns the named stage.
func (p Participant) Stage(name string) (Stage, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Metrics returns the metrics of the named stage, or zeros.
func (p Participant) Metrics(name string) StepMetrics {
	s, _ := p.Stage(name)
	return s.Metrics
}

// Report maps participant ids to participants. encoding/json sorts the keys.
type Report map[string]Participant

// IDs returns the participant ids in sorted order.
func (r Report) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Marshal renders the report as indented JSON without HTML escaping.
func (r Report) Marshal() ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// DecodeReport parses a report document. A bare participant object (one with
// a top-level "steps" key) is accepted and stored as participant_NULL.
func DecodeReport(data []byte) (Report, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	out := make(Report, len(probe))
	if _, ok := probe["steps"]; ok {
		var p Participant
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode participant: %w", err)
		}
		p.Name = Missing
		out[ParticipantID(Missing)] = p
		return out, nil
	}
	for id, raw := range probe {
		var shape map[string]json.RawMessage
		if err := json.Unmarshal(raw, &shape); err != nil {
			continue
		}
		if _, ok := shape["steps"]; !ok {
			continue
		}
		var p Participant
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		p.Name = strings.TrimPrefix(id, participantPrefix)
		out[id] = p
	}
	return out, nil
}

// ParticipantID derives the report key from the NAME field.
func ParticipantID(name string) string {
	if strings.TrimSpace(name) == "" {
		name = "unknown"
	}
	return participantPrefix + name
}

// AugmentedID is the report key of the i-th synthetic variant.
func AugmentedID(i int) string {
	return participantPrefix + "aug_" + strconv.Itoa(i)
}

func writeKV(b *bytes.Buffer, key string, v any) error {
	if err := writeValue(b, key); err != nil {
		return err
	}
	b.WriteByte(':')
	return writeValue(b, v)
}

func writeValue(b *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	b.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

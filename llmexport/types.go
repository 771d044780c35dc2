package llmexport

import "time"

const (
	// ExportFormatVersion identifies the on-disk schema for prompt exports.
	ExportFormatVersion = "eeg_prompt_jsonl_v1"

	// PolicyInference marks records without an assistant answer.
	PolicyInference = "input_for_inference"
	// PolicyTrain marks records that carry a reference assistant answer.
	PolicyTrain = "train"
)

// ExportOptions controls export behavior.
type ExportOptions struct {
	// Overwrite allows writing into a non-empty output directory.
	Overwrite bool

	// Labels maps participant ids to reference summaries. Matching records
	// become training records.
	Labels map[string]string

	// SourceFile is recorded in the manifest when set.
	SourceFile string
}

// ExportResult describes generated files.
type ExportResult struct {
	OutputDir     string `json:"output_dir"`
	ManifestPath  string `json:"manifest_path"`
	PromptsPath   string `json:"prompts_path"`
	RecordCount   int    `json:"record_count"`
	TrainingCount int    `json:"training_count"`
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Meta identifies the participant a record was built from.
type Meta struct {
	ParticipantID string `json:"participant_id"`
	Policy        string `json:"policy"`
}

// Record is one JSONL line in prompts.jsonl.
type Record struct {
	Messages []Message `json:"messages"`
	Meta     Meta      `json:"meta"`
}

// Manifest captures export metadata and pointers to exported files.
type Manifest struct {
	FormatVersion     string        `json:"format_version"`
	RunID             string        `json:"run_id,omitempty"`
	GeneratedAt       time.Time     `json:"generated_at"`
	Sources           []SourceInfo  `json:"sources,omitempty"`
	Artifacts         []string      `json:"artifacts,omitempty"`
	PromptsPath       string        `json:"prompts_path"`
	RecordCount       int           `json:"record_count"`
	TrainingCount     int           `json:"training_count"`
	ParticipantCount  int           `json:"participant_count"`
	Warnings          []string      `json:"warnings,omitempty"`
	SchemaDescription SchemaDetails `json:"schema_description"`
}

// SourceInfo describes one input log.
type SourceInfo struct {
	Path          string `json:"path"`
	SHA256        string `json:"sha256"`
	SizeBytes     int64  `json:"size_bytes"`
	ParticipantID string `json:"participant_id"`
}

// SchemaDetails documents the record shape for downstream applications.
type SchemaDetails struct {
	RecordType string   `json:"record_type"`
	Notes      []string `json:"notes"`
}

func defaultSchema() SchemaDetails {
	return SchemaDetails{
		RecordType: "JSONL line-per-participant chat prompt",
		Notes: []string{
			"messages holds system and user turns; training records add an assistant turn.",
			"final metrics are the last stage; trend is last stage minus first stage.",
			"meta.participant_id matches the key in Report_Data.json.",
			"Lines are ordered by participant_id.",
		},
	}
}

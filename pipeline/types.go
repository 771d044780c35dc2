package pipeline

import (
	"errors"

	"go.uber.org/zap"
)

// ErrNoInputs is returned when no log file could be resolved or parsed.
var ErrNoInputs = errors.New("no input logs")

// Artifact file names inside OutDir.
const (
	ReportFile   = "Report_Data.json"
	KeywordsFile = "keywords.json"
	NotesFile    = "notes.md"
	PromptsFile  = "prompts.jsonl"
	ManifestFile = "manifest.json"
	indicesStem  = "indices"
)

// Options configures a pipeline run.
type Options struct {
	// Inputs are log files or directories. Directories are globbed with Pattern.
	Inputs  []string
	Pattern string // default RECORD*.txt
	OutDir  string
	Format  string // parquet|csv
	// Overwrite allows writing into a non-empty OutDir.
	Overwrite bool
	// Strict turns malformed channel values into errors.
	Strict  bool
	Workers int
	// Encoding is auto, utf-8 or euc-kr.
	Encoding string

	// Augment adds this many synthetic variants of the first participant.
	Augment       int
	AugmentSpread float64
	Seed          uint64

	// Labels maps participant ids to reference summaries for training records.
	Labels map[string]string
	// StorePath enables the SQLite archive when set.
	StorePath string

	Logger *zap.Logger
}

// Result returns generated output paths.
type Result struct {
	RunID            string   `json:"run_id"`
	OutputDir        string   `json:"output_dir"`
	ReportPath       string   `json:"report_path"`
	IndicesPath      string   `json:"indices_path"`
	KeywordsPath     string   `json:"keywords_path"`
	NotesPath        string   `json:"notes_path"`
	PromptsPath      string   `json:"prompts_path"`
	ManifestPath     string   `json:"manifest_path"`
	StorePath        string   `json:"store_path,omitempty"`
	ParticipantCount int      `json:"participant_count"`
	AugmentedCount   int      `json:"augmented_count"`
	Warnings         []string `json:"warnings,omitempty"`
}

// IndexRow is one participant x stage line of the chart-data table.
type IndexRow struct {
	ParticipantID       string  `json:"participant_id"`
	Stage               string  `json:"stage"`
	Stress              float64 `json:"stress"`
	Engage              float64 `json:"engage"`
	Relax               float64 `json:"relax"`
	Excite              float64 `json:"excite"`
	Interest            float64 `json:"interest"`
	Focus               float64 `json:"focus"`
	CognitiveLoad       float64 `json:"cognitive_load"`
	AffectivePositivity float64 `json:"affective_positivity"`
	DirectedFocus       float64 `json:"directed_focus"`
	RelaxArousalBalance float64 `json:"relax_arousal_balance"`
	OverallEngagement   float64 `json:"overall_engagement"`
}

// Package pipeline runs the full log-to-report flow: parse a batch of session
// logs, derive indices and keywords, and write every artifact to one directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	eegreport "github.com/emotion-eeg/eeg-report"
	"github.com/emotion-eeg/eeg-report/augment"
	"github.com/emotion-eeg/eeg-report/internal/store"
	"github.com/emotion-eeg/eeg-report/llmexport"
	"github.com/emotion-eeg/eeg-report/sessionlog"
)

// parsedLog is the outcome of reading one source.
type parsedLog struct {
	src         source
	id          string
	size        int64
	sha256      string
	participant sessionlog.Participant
	diag        sessionlog.Diagnostics
	skipped     error
}

// Run executes the full pipeline and writes all artifacts into opts.OutDir.
// Nothing is written unless at least one log parses.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format, err := normalizeFormat(strings.ToLower(strings.TrimSpace(opts.Format)))
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	logger = logger.With(zap.String("run_id", runID))

	sources, err := resolveInputs(opts.Inputs, opts.Pattern)
	if err != nil {
		return nil, err
	}
	logger.Info("resolved inputs", zap.Int("files", len(sources)))

	parser := sessionlog.NewParser(sessionlog.DefaultLayout(), sessionlog.ParseOptions{Strict: opts.Strict})
	logs, err := parseAll(ctx, sources, parser, opts, logger)
	if err != nil {
		return nil, err
	}

	report, kept, warnings := assemble(logs, logger)
	if len(report) == 0 {
		return nil, fmt.Errorf("%w: none of %d files could be read", ErrNoInputs, len(sources))
	}
	parsedCount := len(report)

	var augmented []string
	if opts.Augment > 0 {
		variants := augment.Generate(kept[0].participant, augment.Options{
			Count:  opts.Augment,
			Spread: opts.AugmentSpread,
			Seed:   opts.Seed,
		})
		augmented = augment.Into(report, variants)
		if n := len(variants) - len(augmented); n > 0 {
			warnings = append(warnings, fmt.Sprintf("%d augmented ids collided with parsed participants and were skipped", n))
		}
		logger.Info("augmented report", zap.String("base", kept[0].id), zap.Int("variants", len(augmented)))
	}

	files, err := renderArtifacts(report, kept, format, opts.Labels, runID, startedAt, warnings)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}
	// The archive is saved before any artifact is committed so that a store
	// failure leaves the output directory untouched.
	if opts.StorePath != "" {
		if err := archive(ctx, opts.StorePath, runID, startedAt, report, kept); err != nil {
			return nil, err
		}
		logger.Info("archived run", zap.String("store", opts.StorePath))
	}
	if err := writeArtifacts(opts.OutDir, files); err != nil {
		return nil, err
	}
	logger.Info("wrote artifacts", zap.String("dir", opts.OutDir), zap.Int("files", len(files)))

	res := &Result{
		RunID:            runID,
		OutputDir:        opts.OutDir,
		ReportPath:       artifactPath(opts.OutDir, ReportFile),
		IndicesPath:      artifactPath(opts.OutDir, indicesStem+"."+format),
		KeywordsPath:     artifactPath(opts.OutDir, KeywordsFile),
		NotesPath:        artifactPath(opts.OutDir, NotesFile),
		PromptsPath:      artifactPath(opts.OutDir, PromptsFile),
		ManifestPath:     artifactPath(opts.OutDir, ManifestFile),
		ParticipantCount: parsedCount,
		AugmentedCount:   len(augmented),
		Warnings:         llmexport.DedupeWarnings(warnings),
	}
	if opts.StorePath != "" {
		res.StorePath = opts.StorePath
	}
	return res, nil
}

// parseAll reads and parses sources on a bounded pool, keeping input order.
// Failures on explicitly named files and strict-mode violations abort the run;
// unreadable files found by globbing are skipped.
func parseAll(ctx context.Context, sources []source, parser *sessionlog.Parser, opts Options, logger *zap.Logger) ([]parsedLog, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]parsedLog, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pl, err := parseSource(src, parser, opts.Encoding)
			if err != nil {
				if src.explicit || errors.Is(err, sessionlog.ErrInvalidChannel) {
					return err
				}
				logger.Warn("skipping unreadable log", zap.String("file", src.path), zap.Error(err))
				out[i] = parsedLog{src: src, skipped: err}
				return nil
			}
			out[i] = pl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseSource(src source, parser *sessionlog.Parser, enc string) (parsedLog, error) {
	data, err := os.ReadFile(src.path)
	if err != nil {
		return parsedLog{}, fmt.Errorf("read %s: %w", src.path, err)
	}
	text, err := decodeText(data, enc)
	if err != nil {
		return parsedLog{}, fmt.Errorf("%s: %w", src.path, err)
	}
	p, diag, err := parser.Parse(text)
	if err != nil {
		return parsedLog{}, fmt.Errorf("parse %s: %w", src.path, err)
	}
	return parsedLog{
		src:         src,
		id:          sessionlog.ParticipantID(p.Name),
		size:        int64(len(data)),
		sha256:      sha256Hex(data),
		participant: p,
		diag:        diag,
	}, nil
}

// assemble builds the report in input order. A repeated participant id gets
// a numeric suffix and a warning.
func assemble(logs []parsedLog, logger *zap.Logger) (sessionlog.Report, []parsedLog, []string) {
	report := make(sessionlog.Report, len(logs))
	var kept []parsedLog
	var warnings []string
	for _, pl := range logs {
		if pl.skipped != nil {
			warnings = append(warnings, fmt.Sprintf("skipped %s: %v", pl.src.path, pl.skipped))
			continue
		}
		if _, exists := report[pl.id]; exists {
			base := pl.id
			for n := 2; ; n++ {
				candidate := base + "_" + strconv.Itoa(n)
				if _, taken := report[candidate]; !taken {
					pl.id = candidate
					break
				}
			}
			warnings = append(warnings, fmt.Sprintf("%s: duplicate participant %s stored as %s", pl.src.path, base, pl.id))
			logger.Warn("duplicate participant id", zap.String("file", pl.src.path), zap.String("id", base), zap.String("stored_as", pl.id))
		}
		warnings = append(warnings, diagnosticWarnings(pl.src.path, pl.diag)...)
		if !pl.diag.Empty() {
			logger.Debug("parse diagnostics",
				zap.String("file", pl.src.path),
				zap.Int("issues", len(pl.diag.Issues)),
				zap.Strings("dropped_segments", pl.diag.DroppedSegments),
				zap.Strings("missing_stages", pl.diag.MissingStages))
		}
		report[pl.id] = pl.participant
		kept = append(kept, pl)
	}
	return report, kept, warnings
}

func diagnosticWarnings(path string, d sessionlog.Diagnostics) []string {
	var out []string
	if len(d.MissingStages) > 0 {
		out = append(out, fmt.Sprintf("%s: missing stages %s", path, strings.Join(d.MissingStages, ", ")))
	}
	for _, is := range d.Issues {
		out = append(out, fmt.Sprintf("%s: %s %s=%q read as %g", path, is.Segment, is.Channel.Label(), is.Raw, is.Used))
	}
	return out
}

// renderArtifacts produces every output file in memory.
func renderArtifacts(
	report sessionlog.Report,
	kept []parsedLog,
	format string,
	labels map[string]string,
	runID string,
	startedAt time.Time,
	warnings []string,
) (map[string][]byte, error) {
	files := make(map[string][]byte, 6)

	doc, err := report.Marshal()
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", ReportFile, err)
	}
	files[ReportFile] = doc

	indicesName := indicesStem + "." + format
	if files[indicesName], err = marshalIndices(format, BuildIndexRows(report)); err != nil {
		return nil, fmt.Errorf("render %s: %w", indicesName, err)
	}

	if files[KeywordsFile], err = llmexport.MarshalJSON(eegreport.ReportKeywords(report)); err != nil {
		return nil, fmt.Errorf("render %s: %w", KeywordsFile, err)
	}
	files[NotesFile] = []byte(eegreport.BuildReportNotes(report))

	records := llmexport.BuildRecords(report, labels)
	if files[PromptsFile], err = llmexport.MarshalJSONL(records); err != nil {
		return nil, fmt.Errorf("render %s: %w", PromptsFile, err)
	}

	manifest := llmexport.NewManifest(records, len(report))
	manifest.RunID = runID
	manifest.GeneratedAt = startedAt
	manifest.Warnings = llmexport.DedupeWarnings(warnings)
	for _, pl := range kept {
		manifest.Sources = append(manifest.Sources, llmexport.SourceInfo{
			Path:          pl.src.path,
			SHA256:        pl.sha256,
			SizeBytes:     pl.size,
			ParticipantID: pl.id,
		})
	}
	for name := range files {
		manifest.Artifacts = append(manifest.Artifacts, name)
	}
	sort.Strings(manifest.Artifacts)
	if files[ManifestFile], err = llmexport.MarshalJSON(manifest); err != nil {
		return nil, fmt.Errorf("render %s: %w", ManifestFile, err)
	}
	return files, nil
}

func archive(ctx context.Context, path, runID string, startedAt time.Time, report sessionlog.Report, kept []parsedLog) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	bySource := make(map[string]parsedLog, len(kept))
	for _, pl := range kept {
		bySource[pl.id] = pl
	}
	run := store.Run{ID: runID, StartedAt: startedAt}
	for _, id := range report.IDs() {
		pl := bySource[id]
		run.Participants = append(run.Participants, store.ParticipantRecord{
			ID:           id,
			SourceFile:   pl.src.path,
			SourceSHA256: pl.sha256,
			Participant:  report[id],
		})
	}
	if err := st.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	return nil
}

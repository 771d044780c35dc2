package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/korean"

	"github.com/emotion-eeg/eeg-report/internal/store"
	"github.com/emotion-eeg/eeg-report/llmexport"
	"github.com/emotion-eeg/eeg-report/sessionlog"
)

func logText(name string, focus string) string {
	return `[UserInfo]
NAME: ` + name + `
AGE: 29
GENDER: M
[OwnerInfo]
REPORT_DAY: 2025-05-16
[GameData]
STEP1_EMOTION_COLOR: Sad
STEP2_FILL_RATE: Low
STEP3_FILL_RATE: Full
-----STEP.Breathe-----
PM_Stress: 0.90
-----STEP.Step1-----
PM_Stress: 0.50
PM_Engage: 0.40
PM_Relax: 0.30
PM_Excite: 0.20
PM_Interest: 0.35
PM_Focus: 0.45
-----STEP.Step2-----
PM_Stress: 0.45
PM_Engage: 0.50
PM_Relax: 0.35
PM_Excite: 0.25
PM_Interest: 0.40
PM_Focus: 0.50
-----STEP.Step3-----
PM_Stress: 0.40
PM_Engage: 0.60
PM_Relax: 0.40
PM_Excite: 0.30
PM_Interest: 0.45
PM_Focus: ` + focus + `
`
}

func writeLog(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func readManifest(t *testing.T, path string) llmexport.Manifest {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m llmexport.Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestRunWritesAllArtifacts(t *testing.T) {
	in := t.TempDir()
	writeLog(t, in, "RECORD_02.txt", []byte(logText("lee", "0.70")))
	writeLog(t, in, "RECORD_01.txt", []byte(logText("kim", "0.55")))
	writeLog(t, in, "notes.txt", []byte("NAME: ignored"))

	outDir := filepath.Join(t.TempDir(), "out")
	res, err := Run(context.Background(), Options{
		Inputs:  []string{in},
		OutDir:  outDir,
		Format:  "csv",
		Workers: 2,
		Labels:  map[string]string{"participant_kim": "안정적인 상태로 해석됩니다."},
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ParticipantCount)
	assert.NotEmpty(t, res.RunID)

	for _, p := range []string{res.ReportPath, res.IndicesPath, res.KeywordsPath, res.NotesPath, res.PromptsPath, res.ManifestPath} {
		assert.FileExists(t, p)
	}
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "leftover temp file %s", e.Name())
	}

	report, err := LoadReport(res.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"participant_kim", "participant_lee"}, report.IDs())
	assert.Equal(t, 0.55, report["participant_kim"].Metrics("step4").Focus)
	assert.Equal(t, "Sad", report["participant_kim"].Steps[0].AuxValue)

	rows := readCSV(t, res.IndicesPath)
	require.Len(t, rows, 1+2*3)
	assert.Equal(t, indexColumns, rows[0])
	assert.Equal(t, []string{"participant_kim", "step2"}, rows[1][:2])
	assert.Equal(t, "0.5", rows[1][2])

	manifest := readManifest(t, res.ManifestPath)
	assert.Equal(t, res.RunID, manifest.RunID)
	assert.Equal(t, 2, manifest.RecordCount)
	assert.Equal(t, 1, manifest.TrainingCount)
	require.Len(t, manifest.Sources, 2)
	assert.Equal(t, "participant_kim", manifest.Sources[0].ParticipantID)
	assert.Len(t, manifest.Sources[0].SHA256, 64)
	assert.Contains(t, manifest.Artifacts, "indices.csv")

	prompts, err := os.ReadFile(res.PromptsPath)
	require.NoError(t, err)
	records, err := llmexport.DecodeJSONL(prompts)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, llmexport.PolicyTrain, records[0].Meta.Policy)

	notes, err := os.ReadFile(res.NotesPath)
	require.NoError(t, err)
	assert.Contains(t, string(notes), "participant_lee")
}

func TestRunParquetIndices(t *testing.T) {
	in := t.TempDir()
	path := writeLog(t, in, "RECORD_01.txt", []byte(logText("kim", "0.55")))

	res, err := Run(context.Background(), Options{Inputs: []string{path}, OutDir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.IndicesPath, "indices.parquet"))

	data, err := os.ReadFile(res.IndicesPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PAR1")))
	assert.True(t, bytes.HasSuffix(data, []byte("PAR1")))
}

func TestRunDuplicateNamesGetSuffix(t *testing.T) {
	in := t.TempDir()
	writeLog(t, in, "RECORD_01.txt", []byte(logText("kim", "0.55")))
	writeLog(t, in, "RECORD_02.txt", []byte(logText("kim", "0.65")))

	res, err := Run(context.Background(), Options{Inputs: []string{in}, OutDir: t.TempDir(), Format: "csv"})
	require.NoError(t, err)

	report, err := LoadReport(res.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"participant_kim", "participant_kim_2"}, report.IDs())
	assert.Equal(t, 0.65, report["participant_kim_2"].Metrics("step4").Focus)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "duplicate participant participant_kim")
}

func TestRunDecodesEUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String(logText("김민수", "0.55"))
	require.NoError(t, err)
	in := t.TempDir()
	writeLog(t, in, "RECORD_01.txt", []byte(encoded))

	res, err := Run(context.Background(), Options{Inputs: []string{in}, OutDir: t.TempDir(), Format: "csv"})
	require.NoError(t, err)
	report, err := LoadReport(res.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"participant_김민수"}, report.IDs())
}

func TestRunNoInputs(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	_, err := Run(context.Background(), Options{Inputs: []string{t.TempDir()}, OutDir: outDir})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoInputs))
	assert.NoDirExists(t, outDir)
}

func TestRunMissingExplicitInput(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Inputs: []string{filepath.Join(t.TempDir(), "RECORD_missing.txt")},
		OutDir: t.TempDir(),
	})
	assert.Error(t, err)
}

func TestRunStrictRejectsMalformedValue(t *testing.T) {
	in := t.TempDir()
	writeLog(t, in, "RECORD_01.txt", []byte(logText("kim", "abc")))
	outDir := filepath.Join(t.TempDir(), "out")

	_, err := Run(context.Background(), Options{Inputs: []string{in}, OutDir: outDir, Strict: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sessionlog.ErrInvalidChannel))
	assert.NoDirExists(t, outDir)

	res, err := Run(context.Background(), Options{Inputs: []string{in}, OutDir: outDir, Format: "csv"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, strings.Join(res.Warnings, "\n"), `PM_Focus="abc"`)
}

func TestRunRequiresOverwrite(t *testing.T) {
	in := t.TempDir()
	writeLog(t, in, "RECORD_01.txt", []byte(logText("kim", "0.55")))
	outDir := t.TempDir()
	writeLog(t, outDir, "keep.txt", []byte("x"))

	_, err := Run(context.Background(), Options{Inputs: []string{in}, OutDir: outDir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not empty")

	_, err = Run(context.Background(), Options{Inputs: []string{in}, OutDir: outDir, Overwrite: true})
	assert.NoError(t, err)
}

func TestRunRejectsBadFormat(t *testing.T) {
	_, err := Run(context.Background(), Options{Inputs: []string{t.TempDir()}, OutDir: t.TempDir(), Format: "xlsx"})
	assert.Error(t, err)
}

func TestRunAugmentAndArchive(t *testing.T) {
	in := t.TempDir()
	writeLog(t, in, "RECORD_01.txt", []byte(logText("kim", "0.55")))
	dbPath := filepath.Join(t.TempDir(), "archive.db")

	res, err := Run(context.Background(), Options{
		Inputs:    []string{in},
		OutDir:    t.TempDir(),
		Format:    "csv",
		Augment:   3,
		Seed:      7,
		StorePath: dbPath,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ParticipantCount)
	assert.Equal(t, 3, res.AugmentedCount)
	assert.Equal(t, dbPath, res.StorePath)

	report, err := LoadReport(res.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"participant_aug_1", "participant_aug_2", "participant_aug_3", "participant_kim"}, report.IDs())

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	archived, err := st.Participants(context.Background(), res.RunID)
	require.NoError(t, err)
	require.Len(t, archived, 4)
	assert.Equal(t, "participant_kim", archived[3].ID)
	assert.Len(t, archived[3].SourceSHA256, 64)
	assert.Empty(t, archived[0].SourceFile)
}

func TestRunArchiveFailureWritesNoArtifacts(t *testing.T) {
	in := t.TempDir()
	writeLog(t, in, "RECORD_01.txt", []byte(logText("kim", "0.55")))
	blocker := writeLog(t, t.TempDir(), "not-a-dir", []byte("x"))

	outDir := filepath.Join(t.TempDir(), "out")
	_, err := Run(context.Background(), Options{
		Inputs:    []string{in},
		OutDir:    outDir,
		Format:    "csv",
		StorePath: filepath.Join(blocker, "archive.db"),
	})
	require.Error(t, err)

	entries, err := os.ReadDir(outDir)
	if err == nil {
		assert.Empty(t, entries)
	} else {
		assert.True(t, os.IsNotExist(err), err)
	}
}

func TestRunCancelledContext(t *testing.T) {
	in := t.TempDir()
	writeLog(t, in, "RECORD_01.txt", []byte(logText("kim", "0.55")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outDir := filepath.Join(t.TempDir(), "out")
	_, err := Run(ctx, Options{Inputs: []string{in}, OutDir: outDir})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoDirExists(t, outDir)
}

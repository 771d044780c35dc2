package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eegreport "github.com/emotion-eeg/eeg-report"
	"github.com/emotion-eeg/eeg-report/sessionlog"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func participant(stress float64) sessionlog.Participant {
	m := sessionlog.StepMetrics{Stress: stress, Engage: 0.6, Relax: 0.4, Excite: 0.3, Interest: 0.5, Focus: 0.7}
	return sessionlog.Participant{
		Name:      "kim",
		BasicInfo: sessionlog.BasicInfo{Age: "34", Gender: "F", Date: "2025-05-15"},
		Steps: sessionlog.Stages{
			{Name: "step2", AuxKey: "emotion_color", AuxValue: "Happy", Metrics: m},
			{Name: "step3", AuxKey: "fill_rate", AuxValue: "High", Metrics: m},
			{Name: "step4", AuxKey: "fill_rate", AuxValue: sessionlog.Missing, Metrics: m.With(sessionlog.Focus, 0.9)},
		},
	}
}

func TestSaveRunAndReadBack(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	run := Run{
		ID:        "run-1",
		StartedAt: time.Date(2025, 5, 15, 9, 0, 0, 0, time.UTC),
		Participants: []ParticipantRecord{
			{ID: "participant_lee", SourceFile: "b.txt", SourceSHA256: "bb", Participant: participant(0.2)},
			{ID: "participant_kim", SourceFile: "a.txt", SourceSHA256: "aa", Participant: participant(0.4)},
		},
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.Participants(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "participant_kim", got[0].ID)
	assert.Equal(t, "a.txt", got[0].SourceFile)
	assert.Equal(t, "aa", got[0].SourceSHA256)

	want := participant(0.4)
	want.Name = "kim"
	if diff := cmp.Diff(want, got[0].Participant); diff != "" {
		t.Fatalf("participant mismatch (-want +got):\n%s", diff)
	}

	stages, err := s.StageIndices(ctx, "run-1", "participant_kim")
	require.NoError(t, err)
	require.Len(t, stages, 3)
	assert.Equal(t, []string{"step2", "step3", "step4"}, []string{stages[0].Stage, stages[1].Stage, stages[2].Stage})
	assert.InDelta(t, eegreport.ComputeIndices(want.Steps[2].Metrics).DirectedFocus, stages[2].Indices.DirectedFocus, 1e-12)
	assert.InDelta(t, 0.9, stages[2].Metrics.Focus, 1e-12)
}

func TestSaveRunReplacesSameID(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	first := Run{ID: "r", StartedAt: time.Now(), Participants: []ParticipantRecord{
		{ID: "participant_a", Participant: participant(0.1)},
		{ID: "participant_b", Participant: participant(0.1)},
	}}
	require.NoError(t, s.SaveRun(ctx, first))

	second := Run{ID: "r", StartedAt: time.Now(), Participants: []ParticipantRecord{
		{ID: "participant_c", Participant: participant(0.1)},
	}}
	require.NoError(t, s.SaveRun(ctx, second))

	got, err := s.Participants(ctx, "r")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "participant_c", got[0].ID)

	stages, err := s.StageIndices(ctx, "r", "participant_a")
	require.NoError(t, err)
	assert.Empty(t, stages)
}

func TestParticipantsUnknownRun(t *testing.T) {
	s := openTest(t)
	_, err := s.Participants(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestSaveRunRequiresID(t *testing.T) {
	s := openTest(t)
	assert.Error(t, s.SaveRun(context.Background(), Run{}))
}

func TestRunIDsNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archive.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, Run{ID: "old", StartedAt: base}))
	require.NoError(t, s.SaveRun(ctx, Run{ID: "new", StartedAt: base.Add(time.Hour)}))

	ids, err := s.RunIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids)
}

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func recordingStage(name string, calls *[]string, err error) Stage {
	return Stage{
		Name:         name,
		Announcement: "Running " + name + "...",
		Run: func(context.Context) error {
			*calls = append(*calls, name)
			return err
		},
	}
}

func TestRunner_AllStagesSucceed(t *testing.T) {
	var out bytes.Buffer
	var calls []string
	r, err := NewBuilder().
		WithOutput(&out).
		WithLogger(quietLogger).
		WithStages(recordingStage("a", &calls, nil), recordingStage("b", &calls, nil)).
		WithStage(recordingStage("c", &calls, nil)).
		Build()
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Equal(t, "Running a...\nRunning b...\nRunning c...\nDone.\n", out.String())
	require.NotNil(t, report)
	assert.True(t, report.Succeeded)
	assert.Len(t, report.Stages, 3)
}

func TestRunner_FailFast(t *testing.T) {
	var out bytes.Buffer
	var calls []string
	boom := errors.New("boom")
	r, err := NewBuilder().
		WithOutput(&out).
		WithLogger(quietLogger).
		WithStages(
			recordingStage("a", &calls, nil),
			recordingStage("b", &calls, boom),
			recordingStage("c", &calls, nil),
		).
		Build()
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "b", se.Stage)
	assert.Equal(t, "stage b failed: boom", se.Error())

	assert.Equal(t, []string{"a", "b"}, calls, "later stages never start")
	assert.Equal(t, "Running a...\nRunning b...\n", out.String())
	assert.NotContains(t, out.String(), DoneMessage)
	assert.False(t, report.Succeeded)
	assert.Equal(t, "boom", report.Stages[1].Error)
}

func TestRunner_AnnouncementBeforeWork(t *testing.T) {
	var out bytes.Buffer
	var seen string
	r, err := NewBuilder().
		WithOutput(&out).
		WithLogger(quietLogger).
		WithStage(Stage{
			Name:         "only",
			Announcement: "Working...",
			Run: func(context.Context) error {
				seen = out.String()
				return nil
			},
		}).
		Build()
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Working...\n", seen)
}

func TestRunner_EmptyPrintsDone(t *testing.T) {
	var out bytes.Buffer
	r, err := NewBuilder().WithOutput(&out).WithLogger(quietLogger).Build()
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Done.\n", out.String())
}

func TestRunner_CancelledContext(t *testing.T) {
	var out bytes.Buffer
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())

	r, err := NewBuilder().
		WithOutput(&out).
		WithLogger(quietLogger).
		WithStages(
			Stage{Name: "a", Announcement: "A", Run: func(context.Context) error {
				calls = append(calls, "a")
				cancel()
				return nil
			}},
			recordingStage("b", &calls, nil),
		).
		Build()
	require.NoError(t, err)

	_, err = r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "b", se.Stage)
	assert.Equal(t, []string{"a"}, calls)
	assert.Equal(t, "A\n", out.String())
}

func TestRunner_NestedStageErrorKept(t *testing.T) {
	inner := &StageError{Stage: "inner", Err: errors.New("x")}
	r, err := NewBuilder().
		WithOutput(io.Discard).
		WithLogger(quietLogger).
		WithStage(Stage{Name: "outer", Run: func(context.Context) error { return inner }}).
		Build()
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "inner", se.Stage)
}

func TestBuilder_Validation(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := NewBuilder().WithStage(Stage{Run: noop}).Build()
	require.Error(t, err)

	_, err = NewBuilder().WithStage(Stage{Name: "a"}).Build()
	require.Error(t, err)

	_, err = NewBuilder().WithStage(Stage{Name: "a", Run: noop}).WithStage(Stage{Name: "a", Run: noop}).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	r, err := NewBuilder().WithOutput(nil).WithLogger(nil).WithObserver(nil).WithStage(Stage{Name: "a", Run: noop}).Build()
	require.NoError(t, err)
	assert.Len(t, r.Stages(), 1)
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) OnStageStart(stage Stage, index, total int) {
	o.events = append(o.events, "start:"+stage.Name)
}

func (o *recordingObserver) OnStageFinish(stage Stage, index, total int, _ time.Duration, err error) {
	if err != nil {
		o.events = append(o.events, "fail:"+stage.Name)
		return
	}
	o.events = append(o.events, "finish:"+stage.Name)
}

func TestRunner_Observer(t *testing.T) {
	var calls []string
	obs := &recordingObserver{}
	r, err := NewBuilder().
		WithOutput(io.Discard).
		WithLogger(quietLogger).
		WithObserver(obs).
		WithStages(recordingStage("a", &calls, nil), recordingStage("b", &calls, assert.AnError)).
		Build()
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"start:a", "finish:a", "start:b", "fail:b"}, obs.events)
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestRunner_AnnouncementWriteFails(t *testing.T) {
	closed := errors.New("stdout closed")
	var calls []string
	r, err := NewBuilder().
		WithOutput(failingWriter{err: closed}).
		WithLogger(quietLogger).
		WithStages(recordingStage("a", &calls, nil), recordingStage("b", &calls, nil)).
		Build()
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, closed)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "a", se.Stage)
	assert.Empty(t, calls, "the stage does not run")

	require.NotNil(t, report)
	assert.False(t, report.Succeeded)
	assert.Contains(t, report.Error, "write announcement")
}

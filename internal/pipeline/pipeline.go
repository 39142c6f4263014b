// Package pipeline runs the font-making stages in order, announcing each one
// and aborting on the first failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// DoneMessage is printed once every stage has succeeded.
const DoneMessage = "Done."

// StageFunc performs the work of one stage.
type StageFunc func(ctx context.Context) error

// Stage is a named step of the pipeline.
type Stage struct {
	Name         string
	Announcement string
	Run          StageFunc
}

// StageError reports which stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Observer receives stage lifecycle events.
type Observer interface {
	OnStageStart(stage Stage, index, total int)
	OnStageFinish(stage Stage, index, total int, elapsed time.Duration, err error)
}

// Runner executes stages sequentially.
type Runner struct {
	stages    []Stage
	out       io.Writer
	observers []Observer
	logger    *slog.Logger
}

// Builder constructs a Runner with fluent configuration.
type Builder struct {
	r Runner
}

// NewBuilder creates a builder that announces to stdout.
func NewBuilder() *Builder {
	return &Builder{r: Runner{out: os.Stdout, logger: slog.Default()}}
}

// WithOutput sets where announcements and the final message are printed.
func (b *Builder) WithOutput(w io.Writer) *Builder {
	if w != nil {
		b.r.out = w
	}
	return b
}

// WithLogger sets the structured logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	if logger != nil {
		b.r.logger = logger
	}
	return b
}

// WithStage appends a stage.
func (b *Builder) WithStage(stage Stage) *Builder {
	b.r.stages = append(b.r.stages, stage)
	return b
}

// WithStages appends several stages in order.
func (b *Builder) WithStages(stages ...Stage) *Builder {
	b.r.stages = append(b.r.stages, stages...)
	return b
}

// WithObserver registers an observer for stage events.
func (b *Builder) WithObserver(o Observer) *Builder {
	if o != nil {
		b.r.observers = append(b.r.observers, o)
	}
	return b
}

// Build validates the configuration and returns the runner.
func (b *Builder) Build() (*Runner, error) {
	seen := make(map[string]bool, len(b.r.stages))
	for i, s := range b.r.stages {
		if s.Name == "" {
			return nil, fmt.Errorf("stage %d has no name", i)
		}
		if s.Run == nil {
			return nil, fmt.Errorf("stage %s has no run function", s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate stage %s", s.Name)
		}
		seen[s.Name] = true
	}
	r := b.r
	r.stages = append([]Stage(nil), b.r.stages...)
	r.observers = append([]Observer(nil), b.r.observers...)
	return &r, nil
}

// Stages returns the configured stages in execution order.
func (r *Runner) Stages() []Stage {
	return append([]Stage(nil), r.stages...)
}

// Run executes every stage in order. Each announcement is printed before its
// stage starts. The first failing stage stops the run and is returned as a
// *StageError; DoneMessage is printed only when all stages succeed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := newReport()
	total := len(r.stages)

	for i, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			report.finish(err)
			return report, &StageError{Stage: stage.Name, Err: err}
		}

		if stage.Announcement != "" {
			if _, err := fmt.Fprintln(r.out, stage.Announcement); err != nil {
				err = fmt.Errorf("write announcement: %w", err)
				report.finish(err)
				return report, &StageError{Stage: stage.Name, Err: err}
			}
		}
		for _, o := range r.observers {
			o.OnStageStart(stage, i, total)
		}

		r.logger.Debug("stage started", "stage", stage.Name, "index", i+1, "total", total)
		start := time.Now()
		err := stage.Run(ctx)
		elapsed := time.Since(start)
		report.add(stage.Name, elapsed, err)

		for _, o := range r.observers {
			o.OnStageFinish(stage, i, total, elapsed, err)
		}

		if err != nil {
			r.logger.Error("stage failed", "stage", stage.Name, "elapsed", elapsed.Round(time.Millisecond), "error", err)
			report.finish(err)
			var se *StageError
			if errors.As(err, &se) {
				return report, se
			}
			return report, &StageError{Stage: stage.Name, Err: err}
		}
		r.logger.Debug("stage finished", "stage", stage.Name, "elapsed", elapsed.Round(time.Millisecond))
	}

	report.finish(nil)
	if _, err := fmt.Fprintln(r.out, DoneMessage); err != nil {
		return report, fmt.Errorf("write done message: %w", err)
	}
	return report, nil
}

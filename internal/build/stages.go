package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/wikigen/internal/metrics"
)

// Stage is a discrete unit of work in the site build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageName is a strongly-typed identifier for a build stage. All canonical
// stages are declared as constants here for compile-time safety.
type StageName string

// Canonical stage names.
const (
	StageLoadContent    StageName = "load_content"
	StageGitDates       StageName = "git_dates"
	StageResolveLinks   StageName = "resolve_links"
	StagePlanRebuild    StageName = "plan_rebuild"
	StagePrepareStaging StageName = "prepare_staging"
	StageRenderPages    StageName = "render_pages"
	StageWriteIndexes   StageName = "write_indexes"
	StageRewriteLinks   StageName = "rewrite_links"
)

// StageErrorKind classifies the outcome of a stage.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// NewFatalStageError creates a new fatal stage error.
func NewFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func NewWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func NewCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// Pipeline is a fluent builder for ordered stage definitions.
type Pipeline struct{ Defs []StageDef }

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline { return &Pipeline{Defs: make([]StageDef, 0, 8)} }

// Add appends a stage unconditionally.
func (p *Pipeline) Add(name StageName, fn Stage) *Pipeline {
	p.Defs = append(p.Defs, StageDef{Name: name, Fn: fn})
	return p
}

// AddIf appends a stage only if cond is true.
func (p *Pipeline) AddIf(cond bool, name StageName, fn Stage) *Pipeline {
	if cond {
		p.Add(name, fn)
	}
	return p
}

// Build returns a defensive copy of the stage definitions slice.
func (p *Pipeline) Build() []StageDef {
	out := make([]StageDef, len(p.Defs))
	copy(out, p.Defs)
	return out
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled error. Warnings are recorded and execution
// continues with the next stage.
func runStages(ctx context.Context, bs *BuildState, stages []StageDef) error {
	rec := bs.Builder.recorder
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := NewCanceledStageError(st.Name, ctx.Err())
			bs.Report.Errors = append(bs.Report.Errors, se)
			bs.Report.StageErrorKinds[st.Name] = se.Kind
			rec.IncStageResult(string(st.Name), metrics.ResultCanceled)
			return se
		default:
		}

		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)
		bs.Report.StageDurations[string(st.Name)] = dur
		rec.ObserveStageDuration(string(st.Name), dur)

		if err == nil {
			rec.IncStageResult(string(st.Name), metrics.ResultSuccess)
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			// Wrap unknown errors as fatal by default.
			se = NewFatalStageError(st.Name, err)
		}
		bs.Report.StageErrorKinds[st.Name] = se.Kind
		switch se.Kind {
		case StageErrorWarning:
			bs.Report.Warnings = append(bs.Report.Warnings, se)
			rec.IncStageResult(string(st.Name), metrics.ResultWarning)
			continue
		case StageErrorCanceled:
			bs.Report.Errors = append(bs.Report.Errors, se)
			rec.IncStageResult(string(st.Name), metrics.ResultCanceled)
			return se
		default:
			bs.Report.Errors = append(bs.Report.Errors, se)
			rec.IncStageResult(string(st.Name), metrics.ResultFatal)
			return se
		}
	}
	return nil
}

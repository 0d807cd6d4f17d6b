package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// BuildReport captures high-level metrics about a site build run.
type BuildReport struct {
	SchemaVersion   int
	BuildID         string
	Full            bool
	Pages           int // pages in the current content set
	MalformedPages  int
	RenderedPages   int
	ReusedPages     int
	EvictedPages    int
	DanglingLinks   int
	AmbiguousLinks  int
	RenderWorkers   int
	Start           time.Time
	End             time.Time
	Errors          []error // fatal errors causing build abortion
	Warnings        []error // non-fatal issues (malformed pages, link warnings)
	StageDurations  map[string]time.Duration
	StageErrorKinds map[StageName]StageErrorKind
	Outcome         string       // string form for JSON consumers
	OutcomeT        BuildOutcome // typed outcome mirror (source of truth)
}

func newBuildReport() *BuildReport {
	return &BuildReport{
		SchemaVersion:   1,
		BuildID:         uuid.NewString(),
		Start:           time.Now(),
		StageDurations:  make(map[string]time.Duration),
		StageErrorKinds: make(map[StageName]StageErrorKind),
	}
}

func (r *BuildReport) finish() { r.End = time.Now() }

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	dur := r.End.Sub(r.Start)
	return fmt.Sprintf("build=%s pages=%d rendered=%d reused=%d evicted=%d dangling=%d ambiguous=%d duration=%s errors=%d warnings=%d outcome=%s",
		r.BuildID, r.Pages, r.RenderedPages, r.ReusedPages, r.EvictedPages, r.DanglingLinks, r.AmbiguousLinks,
		dur.Truncate(time.Millisecond), len(r.Errors), len(r.Warnings), r.Outcome)
}

// deriveOutcome sets the Outcome fields based on recorded errors and warnings.
func (r *BuildReport) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.setOutcome(OutcomeCanceled)
				return
			}
		}
		r.setOutcome(OutcomeFailed)
		return
	}
	if len(r.Warnings) > 0 {
		r.setOutcome(OutcomeWarning)
		return
	}
	r.setOutcome(OutcomeSuccess)
}

// setOutcome sets both typed and string forms.
func (r *BuildReport) setOutcome(o BuildOutcome) {
	r.OutcomeT = o
	r.Outcome = string(o)
}

// ExitCode maps the outcome to the process exit code contract: 0 success,
// 2 succeeded with warnings, 1 anything else.
func (r *BuildReport) ExitCode() int {
	switch r.OutcomeT {
	case OutcomeSuccess:
		return 0
	case OutcomeWarning:
		return 2
	default:
		return 1
	}
}

// Persist writes the report atomically into the provided root directory
// (final output dir, not staging):
//
//	build-report.json  (machine readable)
//	build-report.txt   (human summary)
//
// Best effort; errors are returned for caller logging but do not change
// build outcome.
func (r *BuildReport) Persist(root string) error {
	if r.End.IsZero() {
		r.finish()
		r.deriveOutcome()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	jb, err := json.MarshalIndent(r.sanitizedCopy(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	jsonPath := filepath.Join(root, "build-report.json")
	tmpJSON := jsonPath + ".tmp"
	if err := os.WriteFile(tmpJSON, jb, 0o644); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmpJSON, jsonPath); err != nil {
		return fmt.Errorf("atomic rename json: %w", err)
	}
	summaryPath := filepath.Join(root, "build-report.txt")
	tmpTxt := summaryPath + ".tmp"
	if err := os.WriteFile(tmpTxt, []byte(r.Summary()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write temp report summary: %w", err)
	}
	if err := os.Rename(tmpTxt, summaryPath); err != nil {
		return fmt.Errorf("atomic rename summary: %w", err)
	}
	return nil
}

// sanitizedCopy returns a copy with error fields converted to strings for
// JSON friendliness.
func (r *BuildReport) sanitizedCopy() *BuildReportSerializable {
	kinds := make(map[string]string, len(r.StageErrorKinds))
	for k, v := range r.StageErrorKinds {
		kinds[string(k)] = string(v)
	}
	if r.StageDurations == nil {
		r.StageDurations = map[string]time.Duration{}
	}
	s := &BuildReportSerializable{
		SchemaVersion:   r.SchemaVersion,
		BuildID:         r.BuildID,
		Full:            r.Full,
		Pages:           r.Pages,
		MalformedPages:  r.MalformedPages,
		RenderedPages:   r.RenderedPages,
		ReusedPages:     r.ReusedPages,
		EvictedPages:    r.EvictedPages,
		DanglingLinks:   r.DanglingLinks,
		AmbiguousLinks:  r.AmbiguousLinks,
		RenderWorkers:   r.RenderWorkers,
		Start:           r.Start,
		End:             r.End,
		Errors:          make([]string, len(r.Errors)),
		Warnings:        make([]string, len(r.Warnings)),
		StageDurations:  r.StageDurations,
		StageErrorKinds: kinds,
		Outcome:         r.Outcome,
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	return s
}

// BuildReportSerializable mirrors BuildReport but with string errors for
// JSON output.
type BuildReportSerializable struct {
	SchemaVersion   int                      `json:"schema_version"`
	BuildID         string                   `json:"build_id"`
	Full            bool                     `json:"full"`
	Pages           int                      `json:"pages"`
	MalformedPages  int                      `json:"malformed_pages"`
	RenderedPages   int                      `json:"rendered_pages"`
	ReusedPages     int                      `json:"reused_pages"`
	EvictedPages    int                      `json:"evicted_pages"`
	DanglingLinks   int                      `json:"dangling_links"`
	AmbiguousLinks  int                      `json:"ambiguous_links"`
	RenderWorkers   int                      `json:"render_workers"`
	Start           time.Time                `json:"start"`
	End             time.Time                `json:"end"`
	Errors          []string                 `json:"errors"`
	Warnings        []string                 `json:"warnings"`
	StageDurations  map[string]time.Duration `json:"stage_durations"`
	StageErrorKinds map[string]string        `json:"stage_error_kinds"`
	Outcome         string                   `json:"outcome"`
}

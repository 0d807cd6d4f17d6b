package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyOutcome    = "outcome"
	KeyPage       = "page"
	KeySource     = "source"
	KeyTarget     = "target"
	KeyToken      = "token"
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyWorkers    = "workers"
	KeyPages      = "pages"
	KeyRendered   = "rendered"
	KeyCopied     = "copied"
	KeyEvicted    = "evicted"
	KeyWarnings   = "warnings"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Page(p string) slog.Attr         { return slog.String(KeyPage, p) }
func Source(s string) slog.Attr       { return slog.String(KeySource, s) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Token(t string) slog.Attr        { return slog.String(KeyToken, t) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Output(o string) slog.Attr       { return slog.String(KeyOutput, o) }
func Workers(n int) slog.Attr         { return slog.Int(KeyWorkers, n) }
func Pages(n int) slog.Attr           { return slog.Int(KeyPages, n) }
func Rendered(n int) slog.Attr        { return slog.Int(KeyRendered, n) }
func Copied(n int) slog.Attr          { return slog.Int(KeyCopied, n) }
func Evicted(n int) slog.Attr         { return slog.Int(KeyEvicted, n) }
func Warnings(n int) slog.Attr        { return slog.Int(KeyWarnings, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

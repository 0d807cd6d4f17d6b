package events

import "time"

// BuildRequested signals that the content tree changed and a rebuild should
// happen soon. Bursts of these are coalesced by the debouncer.
type BuildRequested struct {
	// Reason is a short slug: "content_changed", "scheduled_full_rebuild".
	Reason string
	// Path is the changed file for content events; empty for scheduled ones.
	Path        string
	Full        bool
	RequestedAt time.Time
}

// BuildNow is emitted by the debouncer once a coalesced burst settles; the
// watch loop consumes it and runs exactly one build.
type BuildNow struct {
	TriggeredAt  time.Time
	RequestCount int
	FirstRequest time.Time
	LastRequest  time.Time
	LastReason   string
	Full         bool
	// Cause is "quiet" when the quiet window elapsed, "max_delay" when the
	// coalescing deadline forced the build.
	Cause string
}

// BuildCompleted is published after a build finishes, for history recording
// and external notification.
type BuildCompleted struct {
	BuildID    string
	Outcome    string
	Full       bool
	Pages      int
	Rendered   int
	Reused     int
	Evicted    int
	Dangling   int
	Ambiguous  int
	Warnings   int
	Errors     int
	Duration   time.Duration
	FinishedAt time.Time
}

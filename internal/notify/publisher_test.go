package notify

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/wikigen/internal/build"
)

func TestNewPublisherValidation(t *testing.T) {
	if _, err := NewPublisher("", "wikigen.builds"); err == nil {
		t.Fatal("expected error for empty URL")
	}
	if _, err := NewPublisher("nats://localhost:4222", ""); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestPublishBuildCompletedNilReport(t *testing.T) {
	p := &Publisher{subject: "wikigen.builds"}
	if err := p.PublishBuildCompleted(nil); err == nil {
		t.Fatal("expected error for nil report")
	}
}

func TestEventFromReport(t *testing.T) {
	end := time.Date(2025, 11, 3, 12, 30, 0, 0, time.UTC)
	report := &build.BuildReport{
		BuildID:        "build-42",
		Full:           true,
		Pages:          10,
		RenderedPages:  6,
		ReusedPages:    4,
		EvictedPages:   1,
		DanglingLinks:  2,
		AmbiguousLinks: 1,
		Start:          end.Add(-1500 * time.Millisecond),
		End:            end,
		Warnings:       []error{errors.New("dangling link: ghost")},
		Outcome:        "warning",
	}

	evt := EventFromReport(report)

	if evt.BuildID != "build-42" {
		t.Errorf("expected build_id build-42, got %s", evt.BuildID)
	}
	if !evt.Full {
		t.Error("expected full flag set")
	}
	if evt.Pages != 10 || evt.Rendered != 6 || evt.Reused != 4 || evt.Evicted != 1 {
		t.Errorf("unexpected counts: %+v", evt)
	}
	if evt.DanglingLinks != 2 || evt.AmbiguousLinks != 1 {
		t.Errorf("unexpected link counts: %+v", evt)
	}
	if evt.Warnings != 1 || evt.Errors != 0 {
		t.Errorf("unexpected issue counts: warnings=%d errors=%d", evt.Warnings, evt.Errors)
	}
	if evt.DurationMS != 1500 {
		t.Errorf("expected 1500ms duration, got %d", evt.DurationMS)
	}
	if !evt.FinishedAt.Equal(end) {
		t.Errorf("expected finished_at %s, got %s", end, evt.FinishedAt)
	}
	if evt.Outcome != "warning" {
		t.Errorf("expected outcome warning, got %s", evt.Outcome)
	}
}

func TestBuildEventJSONShape(t *testing.T) {
	evt := BuildEvent{BuildID: "b", Outcome: "success"}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	for _, key := range []string{"build_id", "outcome", "full", "pages", "rendered", "dangling_links", "duration_ms", "finished_at"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("expected key %s in JSON output", key)
		}
	}
}

// Package notify publishes build completion events to NATS so external
// consumers (deploy hooks, chat notifiers, dashboards) can react to site
// builds without polling the output directory.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/wikigen/internal/build"
)

// BuildEvent is the wire format published after each build.
type BuildEvent struct {
	BuildID        string    `json:"build_id"`
	Outcome        string    `json:"outcome"`
	Full           bool      `json:"full"`
	Pages          int       `json:"pages"`
	Rendered       int       `json:"rendered"`
	Reused         int       `json:"reused"`
	Evicted        int       `json:"evicted"`
	DanglingLinks  int       `json:"dangling_links"`
	AmbiguousLinks int       `json:"ambiguous_links"`
	Warnings       int       `json:"warnings"`
	Errors         int       `json:"errors"`
	DurationMS     int64     `json:"duration_ms"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Publisher sends build events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

func NewPublisher(url, subject string) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("notify: NATS URL is required")
	}
	if subject == "" {
		return nil, errors.New("notify: subject is required")
	}
	conn, err := nats.Connect(url, nats.Name("wikigen"))
	if err != nil {
		return nil, fmt.Errorf("notify: connect to NATS at %s: %w", url, err)
	}
	slog.Info("Connected to NATS", "url", url, "subject", subject)
	return &Publisher{conn: conn, subject: subject}, nil
}

// PublishBuildCompleted publishes a completion event for the given report.
func (p *Publisher) PublishBuildCompleted(report *build.BuildReport) error {
	if report == nil {
		return errors.New("notify: nil report")
	}
	evt := EventFromReport(report)
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: marshal build event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", p.subject, err)
	}
	slog.Debug("Published build event", "subject", p.subject, "build_id", evt.BuildID, "outcome", evt.Outcome)
	return nil
}

// Flush waits for buffered messages to reach the server.
func (p *Publisher) Flush() error {
	return p.conn.Flush()
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// EventFromReport maps a build report onto the wire format.
func EventFromReport(report *build.BuildReport) BuildEvent {
	return BuildEvent{
		BuildID:        report.BuildID,
		Outcome:        report.Outcome,
		Full:           report.Full,
		Pages:          report.Pages,
		Rendered:       report.RenderedPages,
		Reused:         report.ReusedPages,
		Evicted:        report.EvictedPages,
		DanglingLinks:  report.DanglingLinks,
		AmbiguousLinks: report.AmbiguousLinks,
		Warnings:       len(report.Warnings),
		Errors:         len(report.Errors),
		DurationMS:     report.End.Sub(report.Start).Milliseconds(),
		FinishedAt:     report.End,
	}
}

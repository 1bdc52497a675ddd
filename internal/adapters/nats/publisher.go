package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
	"github.com/samirrijal/geoanalysis/internal/pkg/metrics"
)

const (
	// AnalysisStream stores completed analysis events.
	AnalysisStream = "GEO_ANALYSES"
	// AnalysisSubjects matches every analysis event subject.
	AnalysisSubjects = "geo.analysis.>"

	analysisSubjectPrefix = "geo.analysis."
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      AnalysisStream,
		Subjects:  []string{AnalysisSubjects},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishAnalysisCompleted publishes the event on geo.analysis.<main layer>.
func (p *Publisher) PublishAnalysisCompleted(ctx context.Context, event *domain.AnalysisEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("encode analysis event: %w", err)
	}
	if _, err := p.js.Publish(AnalysisSubject(event.MainLayer), data, nats.Context(ctx)); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish analysis event: %w", err)
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// AnalysisSubject returns the subject for events about a main layer.
// Characters NATS treats as separators or wildcards are replaced.
func AnalysisSubject(layer string) string {
	return analysisSubjectPrefix + SubjectToken(layer)
}

// SubjectToken makes s safe to use as a single subject token.
func SubjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("geoanalysis"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/geoanalysis/internal/adapters/nats"
	"github.com/samirrijal/geoanalysis/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to analysis events.
type wsMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Layer  string `json:"layer"`  // main layer filter, "" = all layers
}

// wsSubject maps a layer filter to the NATS subject it relays.
func wsSubject(layer string) string {
	if layer == "" {
		return natsadapter.AnalysisSubjects
	}
	return natsadapter.AnalysisSubject(layer)
}

var (
	errAlreadySubscribed = errors.New("already subscribed")
	errNotSubscribed     = errors.New("not subscribed")
)

// unsubscriber is satisfied by *nats.Subscription.
type unsubscriber interface {
	Unsubscribe() error
}

// subscriptionSet tracks one client's subjects. The all-layers wildcard and
// per-layer subjects never coexist, so no event is relayed twice: a layer
// subscription replaces the wildcard and the wildcard replaces every layer.
type subscriptionSet struct {
	subscribe func(subject string) (unsubscriber, error)
	subs      map[string]unsubscriber
}

func newSubscriptionSet(subscribe func(subject string) (unsubscriber, error)) *subscriptionSet {
	return &subscriptionSet{subscribe: subscribe, subs: make(map[string]unsubscriber)}
}

// add subscribes to subject and returns the subjects it replaced.
func (s *subscriptionSet) add(subject string) ([]string, error) {
	if _, exists := s.subs[subject]; exists {
		return nil, errAlreadySubscribed
	}
	sub, err := s.subscribe(subject)
	if err != nil {
		return nil, err
	}

	var replaced []string
	for existing := range s.subs {
		if subject == natsadapter.AnalysisSubjects || existing == natsadapter.AnalysisSubjects {
			replaced = append(replaced, existing)
		}
	}
	for _, r := range replaced {
		_ = s.subs[r].Unsubscribe()
		delete(s.subs, r)
	}
	s.subs[subject] = sub
	return replaced, nil
}

func (s *subscriptionSet) remove(subject string) error {
	sub, exists := s.subs[subject]
	if !exists {
		return errNotSubscribed
	}
	_ = sub.Unsubscribe()
	delete(s.subs, subject)
	return nil
}

func (s *subscriptionSet) closeAll() {
	for subject, sub := range s.subs {
		_ = sub.Unsubscribe()
		delete(s.subs, subject)
	}
}

// WebSocketHandler returns a handler that relays completed analysis events
// from NATS to connected clients.
// Clients send JSON: {"action":"subscribe","layer":"stores"}
// Every client starts subscribed to all layers; subscribing to a layer
// narrows the feed to the subscribed layers.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.With("remote_addr", remoteAddr)

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		if nc == nil {
			_ = writeJSON(map[string]string{"error": "event stream unavailable"})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		logger.Info("ws client connected")

		relay := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}
		subs := newSubscriptionSet(func(subject string) (unsubscriber, error) {
			sub, err := nc.Subscribe(subject, relay)
			if err != nil {
				return nil, err
			}
			return sub, nil
		})

		if _, err := subs.add(natsadapter.AnalysisSubjects); err != nil {
			logger.Error("ws default subscribe", "error", err)
			return
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			subject := wsSubject(m.Layer)

			switch m.Action {
			case "subscribe":
				replaced, err := subs.add(subject)
				switch {
				case errors.Is(err, errAlreadySubscribed):
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
				case err != nil:
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				default:
					_ = writeJSON(map[string]any{"status": "subscribed", "subject": subject, "replaced": replaced})
				}

			case "unsubscribe":
				if err := subs.remove(subject); err != nil {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
					continue
				}
				_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		subs.closeAll()
		logger.Info("ws client disconnected")
	}
}

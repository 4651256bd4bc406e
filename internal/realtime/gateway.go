// Package realtime is the fan-out side of the relationship core: a shared
// session registry, a per-connection client with a bounded send queue, and a
// gateway that delivers named events to a specific user.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"linkup/backend/internal/apperr"
)

// Envelope is the wire framing for outbound events.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Gateway resolves sessions through the Registry and delivers events. Frames
// for connections it hosts go straight to the client's send queue; frames for
// connections hosted by another instance cross via the Relay. A nil relay
// restricts delivery to local connections (single-instance deployments).
type Gateway struct {
	log      *slog.Logger
	registry Registry
	relay    Relay

	mu     sync.RWMutex
	conns  map[string]*Client
	unsubs map[string]func()
}

func NewGateway(registry Registry, relay Relay, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		log:      log,
		registry: registry,
		relay:    relay,
		conns:    make(map[string]*Client),
		unsubs:   make(map[string]func()),
	}
}

// Register binds the user identity to the client's connection, overwriting
// any prior binding for that identity. With a relay, the connection's relay
// channel is subscribed before the binding becomes resolvable.
func (g *Gateway) Register(ctx context.Context, client *Client) error {
	g.mu.Lock()
	g.conns[client.ConnID] = client
	g.mu.Unlock()

	if g.relay != nil {
		unsub, err := g.relay.Subscribe(ctx, client.ConnID, func(frame []byte) {
			if !client.Enqueue(frame) {
				eventsDropped.WithLabelValues("relayed").Inc()
			}
		})
		if err != nil {
			g.mu.Lock()
			delete(g.conns, client.ConnID)
			g.mu.Unlock()
			return err
		}
		g.mu.Lock()
		g.unsubs[client.ConnID] = unsub
		g.mu.Unlock()
	}

	if err := g.registry.Bind(ctx, client.UserID, client.ConnID); err != nil {
		g.mu.Lock()
		delete(g.conns, client.ConnID)
		if unsub := g.unsubs[client.ConnID]; unsub != nil {
			unsub()
			delete(g.unsubs, client.ConnID)
		}
		g.mu.Unlock()
		return err
	}

	connectionsActive.Inc()
	return nil
}

// Deregister drops the connection, stops its relay subscription and removes
// the registry binding, unless a newer connection has already overwritten it.
func (g *Gateway) Deregister(ctx context.Context, client *Client) error {
	g.mu.Lock()
	delete(g.conns, client.ConnID)
	if unsub := g.unsubs[client.ConnID]; unsub != nil {
		unsub()
		delete(g.unsubs, client.ConnID)
	}
	g.mu.Unlock()
	connectionsActive.Dec()

	connID, ok, err := g.registry.Resolve(ctx, client.UserID)
	if err != nil {
		return err
	}
	if ok && connID == client.ConnID {
		return g.registry.Unbind(ctx, client.UserID)
	}
	return nil
}

// EmitToUser resolves the user's session and delivers the event. A locally
// hosted connection gets the frame enqueued directly; a connection hosted
// elsewhere gets it through the relay. A missing session — no binding, or a
// binding no host picked up — fails only in strict mode; in best-effort mode
// it is a successful no-op. Delivery failures after a host accepted the frame
// are logged and swallowed, since the state change that triggered the event
// has already been committed.
func (g *Gateway) EmitToUser(ctx context.Context, userID, event string, payload interface{}, strict bool) error {
	connID, ok, err := g.registry.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return g.missSession(event, strict)
	}

	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	g.mu.RLock()
	client := g.conns[connID]
	g.mu.RUnlock()

	if client != nil {
		if !client.Enqueue(frame) {
			eventsDropped.WithLabelValues(event).Inc()
			g.log.Warn("dropping realtime event: send queue unavailable",
				"event", event, "user_id", userID, "conn_id", connID)
			return nil
		}
		eventsDelivered.WithLabelValues(event).Inc()
		return nil
	}

	// The binding points at a connection another instance hosts.
	if g.relay != nil {
		receivers, err := g.relay.Publish(ctx, connID, frame)
		if err != nil {
			return err
		}
		if receivers > 0 {
			eventsDelivered.WithLabelValues(event).Inc()
			return nil
		}
	}

	// Stale binding: no host holds this connection.
	return g.missSession(event, strict)
}

func (g *Gateway) missSession(event string, strict bool) error {
	if strict {
		return apperr.Delivery("recipient_not_connected",
			"User is not connected to the realtime channel")
	}
	eventsSkipped.WithLabelValues(event).Inc()
	return nil
}

// EmitToUsers fans an event out to several users in parallel. Individual
// failures never abort the batch; they are joined into the returned error.
func (g *Gateway) EmitToUsers(ctx context.Context, userIDs []string, event string, payload interface{}, strict bool) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, userID := range userIDs {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if err := g.EmitToUser(ctx, userID, event, payload, strict); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(userID)
	}
	wg.Wait()
	return errors.Join(errs...)
}

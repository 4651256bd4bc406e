package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"linkup/backend/internal/models"
	"linkup/backend/internal/relationship"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

const wsWriteTimeout = 5 * time.Second

// UserSource resolves a verified identity to a stored user. The handshake
// refuses otherwise-valid credentials whose user no longer exists.
type UserSource interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// StatsResetter handles the inbound relationship:events_seen event.
type StatsResetter interface {
	ResetStats(ctx context.Context, userID string, relType models.RelationshipType) error
}

type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSHandler upgrades authenticated requests to realtime sessions and routes
// inbound client events.
type WSHandler struct {
	log     *slog.Logger
	gateway *Gateway
	users   UserSource
	stats   StatsResetter
	verify  func(token string) (string, error)
}

// NewWSHandler builds the websocket entrypoint. verify maps a bearer token to
// a user id or fails.
func NewWSHandler(gateway *Gateway, users UserSource, stats StatsResetter, verify func(string) (string, error), log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{log: log, gateway: gateway, users: users, stats: stats, verify: verify}
}

// Handle godoc
// @Summary      Realtime channel
// @Description  Upgrades to a websocket carrying relationship events. Authenticate with ?token= or a Bearer header.
// @Tags         realtime
// @Security     BearerAuth
// @Failure      401  {object}  map[string]string
// @Router       /ws [get]
func (h *WSHandler) Handle(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
		return
	}

	userID, err := h.verify(token)
	if err != nil {
		h.log.Info("ws handshake rejected: invalid token", "err", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "The access token is invalid"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.UserByID(ctx, userID)
	if err != nil {
		h.log.Info("ws handshake rejected: unknown user", "user_id", userID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "The user with the provided credentials does not exist"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Info("ws accept failed", "err", err)
		return
	}

	client := NewClient(user.ID, defaultSendQueueSize)
	if err := h.gateway.Register(ctx, client); err != nil {
		h.log.Error("ws session registration failed", "user_id", user.ID, "err", err)
		conn.Close(websocket.StatusInternalError, "session registration failed")
		return
	}

	defer func() {
		client.Close()
		if err := h.gateway.Deregister(context.Background(), client); err != nil {
			h.log.Warn("ws session deregistration failed", "user_id", user.ID, "err", err)
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	go client.WritePump(ctx, conn, wsWriteTimeout)

	h.log.Info("ws session established", "user_id", user.ID, "conn_id", client.ConnID)
	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Debug("ignoring malformed ws frame", "user_id", client.UserID, "err", err)
			continue
		}

		switch env.Event {
		case relationship.EventEventsSeen:
			var payload relationship.EventsSeenPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				h.log.Debug("ignoring malformed events_seen payload", "user_id", client.UserID, "err", err)
				continue
			}
			if err := h.stats.ResetStats(ctx, client.UserID, payload.Type); err != nil {
				h.log.Warn("resetting relationship stats failed",
					"user_id", client.UserID, "type", payload.Type, "err", err)
			}
		default:
			h.log.Debug("ignoring unknown ws event", "event", env.Event, "user_id", client.UserID)
		}
	}
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

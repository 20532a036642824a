package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"messenger-service/internal/observability"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// SocketHandler serves GET /ws. The socket is authenticated at upgrade;
// presence starts only with an explicit join event.
type SocketHandler struct {
	hub    *Hub
	router *Router
	svc    Realtime
	tokens TokenVerifier
	limit  rate.Limit
	burst  int
	log    logrus.FieldLogger
}

// NewSocketHandler constructs a SocketHandler. eventsPerSecond <= 0 disables
// inbound rate limiting.
func NewSocketHandler(hub *Hub, router *Router, svc Realtime, tokens TokenVerifier, eventsPerSecond float64, burst int, logger logrus.FieldLogger) *SocketHandler {
	limit := rate.Inf
	if eventsPerSecond > 0 {
		limit = rate.Limit(eventsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &SocketHandler{
		hub:    hub,
		router: router,
		svc:    svc,
		tokens: tokens,
		limit:  limit,
		burst:  burst,
		log:    logger.WithField("component", "ws"),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and starts its pumps.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake",
		trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("token")
	if token == "" {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}
	}
	userID, err := h.tokens.Verify(token)
	if err != nil {
		span.SetStatus(codes.Error, "invalid token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	span.SetAttributes(attribute.String("user.id", userID))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		Identity:    observability.IdentityFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info, rate.NewLimiter(h.limit, h.burst))
	h.hub.Register(client)

	// the request context ends when Handle returns; keep its values only
	connCtx := context.WithoutCancel(ctx)
	observability.IncWSActive()
	publishLifecycle(connCtx, info, "ws_connect", "")
	h.log.WithFields(logrus.Fields{"conn_id": info.ConnID, "user_id": userID}).Debug("socket connected")

	go client.writePump()
	go h.serve(connCtx, client)
}

func (h *SocketHandler) serve(ctx context.Context, client *Client) {
	info := client.info
	err := client.readPump(func(frame []byte) {
		h.router.Dispatch(ctx, client, frame)
	})

	reason := ""
	if err != nil {
		reason = err.Error()
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			publishLifecycle(ctx, info, "ws_error", reason)
		}
	}

	h.hub.Unregister(info.ConnID)
	h.svc.Disconnect(ctx, info.ConnID)
	observability.DecWSActive()
	publishLifecycle(ctx, info, "ws_disconnect", reason)
	h.log.WithFields(logrus.Fields{"conn_id": info.ConnID, "user_id": info.UserID}).Debug("socket closed")
}

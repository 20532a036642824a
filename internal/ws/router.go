package ws

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"messenger-service/internal/delivery"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// Realtime is the part of the delivery service reachable from client events.
type Realtime interface {
	Join(ctx context.Context, connID, userID string)
	Disconnect(ctx context.Context, connID string)
	CanJoinRoom(ctx context.Context, userID, chatID string) bool
	MarkRead(ctx context.Context, userID, chatID, messageID, source string) (models.Message, error)
	MarkDelivered(ctx context.Context, userID, chatID, messageID, source string) (models.Message, error)
}

// Router applies inbound client events. Events never get a reply: anything
// malformed, unauthorized or failing is dropped.
type Router struct {
	hub      *Hub
	svc      Realtime
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewRouter(hub *Hub, svc Realtime, logger logrus.FieldLogger) *Router {
	return &Router{
		hub:      hub,
		svc:      svc,
		validate: validator.New(),
		log:      logger.WithField("component", "ws-router"),
	}
}

// Dispatch decodes one frame from c and applies it.
func (r *Router) Dispatch(ctx context.Context, c *Client, frame []byte) {
	var in models.InboundEvent
	if err := json.Unmarshal(frame, &in); err != nil || in.Name == "" {
		r.drop(c, "malformed", "undecodable frame")
		return
	}

	switch in.Name {
	case models.EventJoin:
		var userID string
		if err := json.Unmarshal(in.Data, &userID); err != nil || userID != c.info.UserID {
			r.drop(c, in.Name, "join as another user")
			return
		}
		r.svc.Join(ctx, c.info.ConnID, userID)

	case models.EventJoinChat:
		chatID, ok := r.chatID(in.Data)
		if !ok || !r.svc.CanJoinRoom(ctx, c.info.UserID, chatID) {
			r.drop(c, in.Name, "room not allowed")
			return
		}
		r.hub.JoinRoom(c.info.ConnID, chatID)

	case models.EventLeaveChat:
		chatID, ok := r.chatID(in.Data)
		if !ok {
			r.drop(c, in.Name, "invalid chat id")
			return
		}
		r.hub.LeaveRoom(c.info.ConnID, chatID)

	case models.EventMarkAsRead, models.EventMarkAsDelivered:
		var req models.ReceiptRequest
		if err := json.Unmarshal(in.Data, &req); err != nil {
			r.drop(c, in.Name, "undecodable payload")
			return
		}
		if err := r.validate.Struct(req); err != nil {
			r.drop(c, in.Name, err.Error())
			return
		}
		mark := r.svc.MarkRead
		if in.Name == models.EventMarkAsDelivered {
			mark = r.svc.MarkDelivered
		}
		if _, err := mark(ctx, c.info.UserID, req.ChatID, req.MessageID, delivery.SourceRealtime); err != nil {
			r.drop(c, in.Name, err.Error())
			return
		}

	default:
		r.drop(c, "unknown", in.Name)
		return
	}
	observability.IncWSInbound(in.Name, "ok")
}

// chatID accepts either a bare id string or {"chatId": "..."}.
func (r *Router) chatID(data json.RawMessage) (string, bool) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var ref models.ChatRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return "", false
		}
		id = ref.ChatID
	}
	if err := r.validate.Var(id, "required,uuid"); err != nil {
		return "", false
	}
	return id, true
}

func (r *Router) drop(c *Client, event, reason string) {
	observability.IncWSInbound(event, "dropped")
	r.log.WithFields(logrus.Fields{
		"conn_id": c.info.ConnID,
		"user_id": c.info.UserID,
		"event":   event,
		"reason":  reason,
	}).Debug("inbound event dropped")
}

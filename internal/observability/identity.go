package observability

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is what a socket handshake tells us about the client.
type Identity struct {
	DeviceID  string `json:"device_id,omitempty"`
	IP        string `json:"ip"`
	RequestID string `json:"request_id"`
}

// IdentityFromRequest reads X-Device-Id and X-Request-Id and resolves the
// client address, preferring the first X-Forwarded-For hop. A missing request
// id is generated so lifecycle events of one socket stay correlated.
func IdentityFromRequest(r *http.Request) Identity {
	id := Identity{
		DeviceID:  r.Header.Get("X-Device-Id"),
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        clientIP(r),
	}
	if id.RequestID == "" {
		id.RequestID = uuid.NewString()
	}
	return id
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// LifecycleEvent is published for socket connect, disconnect and error.
type LifecycleEvent struct {
	EventType  string    `json:"event_type"`
	EventName  string    `json:"event_name"`
	OccurredAt time.Time `json:"occurred_at"`
	ConnID     string    `json:"conn_id"`
	UserID     string    `json:"user_id"`
	DurationMS int64     `json:"duration_ms"`
	Reason     string    `json:"reason,omitempty"`
	Identity   Identity  `json:"identity"`
}

// Headers builds AMQP headers correlating an event with its request and trace.
func Headers(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

package ws

import (
	"time"

	"messenger-service/internal/observability"
)

// ConnInfo identifies one socket for lifecycle events and logs. UserID is the
// token subject; presence only starts once the socket joins as that user.
type ConnInfo struct {
	ConnID      string
	UserID      string
	Identity    observability.Identity
	TraceID     string
	ConnectedAt time.Time
}

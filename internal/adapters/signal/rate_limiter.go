package signal

import (
	"golang.org/x/time/rate"

	"github.com/dkeye/WatchParty/internal/core"
)

// rateLimited events count against the connection's token bucket.
var rateLimited = map[core.EventType]bool{
	core.EventSendMessageToRoom: true,
	core.EventVideoTriggered:    true,
}

// newConnLimiter builds the per-connection bucket. A non-positive rate disables limiting.
func newConnLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
}

func allow(c *wsSignalConn, t core.EventType) bool {
	return !rateLimited[t] || c.limiter.Allow()
}

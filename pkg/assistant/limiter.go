package assistant

import (
	"context"

	"metabolite-assistant-be/internal/pkg/logger"

	"golang.org/x/time/rate"
)

// LimitedClient spaces out requests to the wrapped client. A request that
// cannot get a token before ctx ends is answered with Unavailable.
type LimitedClient struct {
	next    Client
	limiter *rate.Limiter
	logger  logger.ILogger
}

var _ Client = (*LimitedClient)(nil)

// NewLimitedClient allows perSecond requests with bursts of burst. A
// non-positive perSecond returns next unchanged.
func NewLimitedClient(next Client, perSecond float64, burst int, log logger.ILogger) Client {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &LimitedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  log,
	}
}

func (c *LimitedClient) Send(ctx context.Context, payload RequestPayload) Reply {
	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn(logModule, "AI request not sent, rate limit wait aborted", map[string]interface{}{
			"error": err.Error(),
			"task":  string(payload.Task),
		})
		return Unavailable()
	}
	return c.next.Send(ctx, payload)
}

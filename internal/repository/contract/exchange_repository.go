package contract

import (
	"context"

	"metabolite-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// ExchangeFilter selects archived exchanges of one session, oldest first.
type ExchangeFilter struct {
	SessionId uuid.UUID
	Limit     int
	Offset    int
}

type ExchangeRepository interface {
	Create(ctx context.Context, exchange *entity.Exchange) error
	FindAll(ctx context.Context, filter ExchangeFilter) ([]*entity.Exchange, error)
	Count(ctx context.Context, sessionId uuid.UUID) (int64, error)
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error
}

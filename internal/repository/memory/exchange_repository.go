package memory

import (
	"context"
	"sync"
	"time"

	"metabolite-assistant-be/internal/entity"
	"metabolite-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ExchangeRepository is the archive used when no database is configured.
// A session's exchanges expire together, ttl after the last write.
type ExchangeRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewExchangeRepository(ttl time.Duration) contract.ExchangeRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ExchangeRepository{cache: cache.New(ttl, ttl/2)}
}

func (r *ExchangeRepository) Create(_ context.Context, exchange *entity.Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if exchange.Id == uuid.Nil {
		exchange.Id = uuid.New()
	}
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now()
	}
	stored := *exchange

	key := exchange.SessionId.String()
	var list []*entity.Exchange
	if x, found := r.cache.Get(key); found {
		list = x.([]*entity.Exchange)
	}
	r.cache.Set(key, append(list, &stored), cache.DefaultExpiration)
	return nil
}

func (r *ExchangeRepository) FindAll(_ context.Context, filter contract.ExchangeFilter) ([]*entity.Exchange, error) {
	list := r.list(filter.SessionId)

	start := min(max(filter.Offset, 0), len(list))
	end := len(list)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, end)
	}

	out := make([]*entity.Exchange, 0, end-start)
	for _, e := range list[start:end] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r *ExchangeRepository) Count(_ context.Context, sessionId uuid.UUID) (int64, error) {
	return int64(len(r.list(sessionId))), nil
}

func (r *ExchangeRepository) DeleteBySessionId(_ context.Context, sessionId uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(sessionId.String())
	return nil
}

func (r *ExchangeRepository) list(sessionId uuid.UUID) []*entity.Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	if x, found := r.cache.Get(sessionId.String()); found {
		return x.([]*entity.Exchange)
	}
	return nil
}

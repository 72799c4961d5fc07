package memory

import (
	"time"

	"metabolite-assistant-be/pkg/chat"
	"metabolite-assistant-be/pkg/snapshot"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionRecord pairs a chat session with the dashboard state it reads.
type SessionRecord struct {
	Session *chat.Session
	State   *snapshot.Store
}

// SessionRepository keeps live sessions in memory. Every successful Get
// extends the session's lifetime by the configured TTL.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	cleanup := ttl / 6
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return &SessionRepository{
		cache: cache.New(ttl, cleanup),
	}
}

func (r *SessionRepository) Save(record *SessionRecord) {
	r.cache.Set(record.Session.Id.String(), record, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionId uuid.UUID) (*SessionRecord, bool) {
	key := sessionId.String()
	if x, found := r.cache.Get(key); found {
		record := x.(*SessionRecord)
		// Replace fails if a Delete or expiry won the race; the session stays gone.
		if err := r.cache.Replace(key, record, cache.DefaultExpiration); err != nil {
			return nil, false
		}
		return record, true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionId uuid.UUID) {
	r.cache.Delete(sessionId.String())
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

// OnEvicted registers fn for sessions that expire or are deleted.
func (r *SessionRepository) OnEvicted(fn func(sessionId uuid.UUID)) {
	r.cache.OnEvicted(func(key string, _ interface{}) {
		if id, err := uuid.Parse(key); err == nil {
			fn(id)
		}
	})
}

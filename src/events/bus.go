package events

import (
	"sync"
	"time"

	"github.com/arsyadal/fastblog/src/logging"
	"github.com/google/uuid"
)

type Type string

const (
	ArticlePublished  Type = "article.published"
	ArticleDeleted    Type = "article.deleted"
	ArticleClapped    Type = "article.clapped"
	ArticleBookmarked Type = "article.bookmarked"
	ArticleCommented  Type = "article.commented"
	ArticleViewed     Type = "article.viewed"
	ArticleRead       Type = "article.read"
	UserFollowed      Type = "user.followed"
)

// Event records something that changed a counter. Counters holds the values
// right after the change, keyed by column name.
type Event struct {
	ID         uuid.UUID        `json:"id"`
	Type       Type             `json:"type"`
	ArticleID  *uuid.UUID       `json:"article_id,omitempty"`
	UserID     *uuid.UUID       `json:"user_id,omitempty"`
	Counters   map[string]int64 `json:"counters,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewArticleEvent(t Type, articleID uuid.UUID, userID *uuid.UUID, counters map[string]int64) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		ArticleID:  &articleID,
		UserID:     userID,
		Counters:   counters,
		OccurredAt: time.Now(),
	}
}

func NewUserEvent(t Type, userID uuid.UUID, counters map[string]int64) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		UserID:     &userID,
		Counters:   counters,
		OccurredAt: time.Now(),
	}
}

// Partition key for brokers: events about one article stay in order.
func (e Event) Key() string {
	if e.ArticleID != nil {
		return e.ArticleID.String()
	}
	if e.UserID != nil {
		return e.UserID.String()
	}
	return e.ID.String()
}

/*
Bus fans events out to every subscriber in-process. Publishing never blocks:
a subscriber whose buffer is full misses the event.
*/
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

type Subscription struct {
	C <-chan Event

	name string
	c    chan Event
	bus  *Bus
	once sync.Once
}

// Subscribe registers a listener with room for buffer pending events. Call
// Close when done listening.
func (b *Bus) Subscribe(name string, buffer int) *Subscription {
	c := make(chan Event, buffer)
	sub := &Subscription{C: c, name: name, c: c, bus: b}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.c)
	})
}

func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.c <- evt:
		default:
			logging.Warn().
				Str("subscriber", sub.name).
				Str("event", string(evt.Type)).
				Msg("event subscriber is full, dropping event")
		}
	}
}

func (b *Bus) NumSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

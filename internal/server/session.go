package server

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Spok95/bpark/internal/domain/subscribers"
)

// Logins maps opaque connection ids to the authenticated subscriber.
// Entries live exactly as long as the connection: dropped on disconnect
// or an explicit CLIENT_DISCONNECTED. The TTL only guards against
// connections that vanished without either event.
type Logins struct {
	c *cache.Cache
}

func NewLogins() *Logins {
	return &Logins{c: cache.New(12*time.Hour, time.Hour)}
}

func (l *Logins) Put(connID string, sub *subscribers.Subscriber) {
	l.c.SetDefault(connID, sub)
}

func (l *Logins) Get(connID string) *subscribers.Subscriber {
	v, ok := l.c.Get(connID)
	if !ok {
		return nil
	}
	return v.(*subscribers.Subscriber)
}

func (l *Logins) Drop(connID string) {
	l.c.Delete(connID)
}

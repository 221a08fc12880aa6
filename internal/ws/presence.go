package ws

import "sync"

// Presence maps logged-in users to their live connection. At most one handle
// per user: a reconnect overwrites the previous entry (last connection wins).
// Nothing here is persisted; after a restart everyone is offline until they
// reconnect.
type Presence struct {
	mu    sync.RWMutex
	conns map[int64]*Client
}

func NewPresence() *Presence {
	return &Presence{conns: make(map[int64]*Client)}
}

// Register records the handle for a user and returns the handle it replaced,
// if any, so the caller can shut it down.
func (p *Presence) Register(userID int64, c *Client) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	replaced := p.conns[userID]
	if replaced == c {
		replaced = nil
	}
	p.conns[userID] = c
	return replaced
}

// Unregister removes the entry only if it still points at c. The check keeps
// a slow disconnect of a stale handle from clobbering a newer connection.
func (p *Presence) Unregister(userID int64, c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[userID] != c {
		return false
	}
	delete(p.conns, userID)
	return true
}

func (p *Presence) Lookup(userID int64) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.conns[userID]
	return c, ok
}

func (p *Presence) Online() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]int64, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	return ids
}

func (p *Presence) Clients() []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	clients := make([]*Client, 0, len(p.conns))
	for _, c := range p.conns {
		clients = append(clients, c)
	}
	return clients
}

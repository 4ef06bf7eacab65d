package core

import (
	"sort"
	"sync"

	"github.com/inaumanmajeed/epicrealm-support/internal/store"
)

// Presence statuses.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Presence tracks which identities are connected and through which clients.
// An identity may hold several connections; direct sends reach all of them.
// The hub mutates it; HTTP handlers read it concurrently.
type Presence struct {
	mu      sync.RWMutex
	byParty map[store.Party]map[*Client]struct{}
	staff   map[*Client]struct{}
}

// NewPresence creates an empty registry.
func NewPresence() *Presence {
	return &Presence{
		byParty: make(map[store.Party]map[*Client]struct{}),
		staff:   make(map[*Client]struct{}),
	}
}

// Register adds a connection. It reports whether this is the identity's first connection.
func (p *Presence) Register(c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns, ok := p.byParty[c.Identity.Party]
	if !ok {
		conns = make(map[*Client]struct{})
		p.byParty[c.Identity.Party] = conns
	}
	conns[c] = struct{}{}
	if c.Identity.IsStaff() {
		p.staff[c] = struct{}{}
	}
	return len(conns) == 1
}

// Unregister removes a connection. It reports whether the identity went offline.
func (p *Presence) Unregister(c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.staff, c)
	conns, ok := p.byParty[c.Identity.Party]
	if !ok {
		return false
	}
	if _, ok := conns[c]; !ok {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(p.byParty, c.Identity.Party)
		return true
	}
	return false
}

// IsOnline reports whether the party has at least one connection.
func (p *Presence) IsOnline(party store.Party) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byParty[party]) > 0
}

// Connections returns every client of the party.
func (p *Presence) Connections(party store.Party) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := make([]*Client, 0, len(p.byParty[party]))
	for c := range p.byParty[party] {
		conns = append(conns, c)
	}
	return conns
}

// StaffConnections returns every staff client.
func (p *Presence) StaffConnections() []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := make([]*Client, 0, len(p.staff))
	for c := range p.staff {
		conns = append(conns, c)
	}
	return conns
}

// DirectSend delivers an event to every connection of the party and returns how many received it.
// Offline parties are silently skipped.
func (p *Presence) DirectSend(party store.Party, event *Event) int {
	delivered := 0
	for _, c := range p.Connections(party) {
		if c.send(event) {
			delivered++
		}
	}
	return delivered
}

// BroadcastToStaff delivers an event to every staff connection.
func (p *Presence) BroadcastToStaff(event *Event) int {
	delivered := 0
	for _, c := range p.StaffConnections() {
		if c.send(event) {
			delivered++
		}
	}
	return delivered
}

// SetStatus records a presence status on one connection.
func (p *Presence) SetStatus(c *Client, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.status = status
}

// Rename updates the display fields of a connection's identity.
func (p *Presence) Rename(c *Client, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.Identity.Name = name
	c.Identity.UserName = name
}

// PresenceCounts summarizes who is online.
type PresenceCounts struct {
	Visitors    int
	Staff       int
	Connections int
}

// OnlineCounts counts online identities and connections.
func (p *Presence) OnlineCounts() PresenceCounts {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var counts PresenceCounts
	for _, conns := range p.byParty {
		counts.Connections += len(conns)
		staff := false
		for c := range conns {
			staff = c.Identity.IsStaff()
			break
		}
		if staff {
			counts.Staff++
		} else {
			counts.Visitors++
		}
	}
	return counts
}

// PresenceEntry is one online identity.
type PresenceEntry struct {
	User        Participant
	Status      string
	Connections int
}

// Snapshot lists online identities ordered by party.
func (p *Presence) Snapshot() []PresenceEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]PresenceEntry, 0, len(p.byParty))
	for _, conns := range p.byParty {
		var entry PresenceEntry
		for c := range conns {
			if entry.Connections == 0 {
				entry.User = c.Identity.Participant()
				entry.Status = c.status
			}
			// Any connection reporting online wins.
			if c.status == PresenceOnline {
				entry.Status = PresenceOnline
			}
			entry.Connections++
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].User.ID < entries[j].User.ID
	})
	return entries
}

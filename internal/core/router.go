package core

import "github.com/inaumanmajeed/epicrealm-support/internal/store"

// Fan-out helpers. They run on the hub goroutine only.

func (h *Hub) joinRoom(c *Client, chatID string) bool {
	room, ok := h.rooms[chatID]
	if !ok {
		room = NewRoom(chatID)
		h.rooms[chatID] = room
	}
	if !room.AddClient(c) {
		return false
	}
	c.Rooms[chatID] = struct{}{}
	return true
}

func (h *Hub) leaveRoom(c *Client, chatID string) bool {
	delete(c.Rooms, chatID)
	room, ok := h.rooms[chatID]
	if !ok {
		return false
	}
	removed := room.RemoveClient(c)
	if room.Empty() {
		delete(h.rooms, chatID)
	}
	return removed
}

func (h *Hub) inRoom(c *Client, chatID string) bool {
	room, ok := h.rooms[chatID]
	return ok && room.Has(c)
}

// dissolveRoom unsubscribes everyone from a deleted chat.
func (h *Hub) dissolveRoom(chatID string) {
	room, ok := h.rooms[chatID]
	if !ok {
		return
	}
	for _, c := range room.Members() {
		delete(c.Rooms, chatID)
	}
	delete(h.rooms, chatID)
}

func (h *Hub) toRoom(chatID string, event *Event, skip *Client) {
	if room, ok := h.rooms[chatID]; ok {
		room.Broadcast(event, skip)
	}
}

func (h *Hub) toStaff(event *Event, skip *Client) {
	for _, c := range h.presence.StaffConnections() {
		if c != skip {
			c.send(event)
		}
	}
}

func (h *Hub) toParty(party store.Party, event *Event) int {
	return h.presence.DirectSend(party, event)
}

// toRoomAndStaff delivers once per connection even when a staff member is also in the room.
func (h *Hub) toRoomAndStaff(chatID string, event *Event) {
	seen := make(map[*Client]struct{})
	if room, ok := h.rooms[chatID]; ok {
		for _, c := range room.Members() {
			seen[c] = struct{}{}
		}
	}
	for _, c := range h.presence.StaffConnections() {
		seen[c] = struct{}{}
	}
	for c := range seen {
		c.send(event)
	}
}

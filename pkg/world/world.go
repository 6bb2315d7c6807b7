package world

import (
	"sort"
	"time"

	"github.com/global-bar/bar-web/pkg/protocol"
)

// World is the client's view of one room. Treat it as read-only.
type World struct {
	RoomID string                 `json:"roomId"`
	Me     string                 `json:"me,omitempty"`
	Size   protocol.WorldSize     `json:"size"`
	Users  map[string]*UserEntity `json:"users"`
	Rules  *ServerRules           `json:"rules,omitempty"`
	Chat   []ChatLine             `json:"chat"`
}

// New returns an empty world for roomID at the default size.
func New(roomID string) *World {
	return &World{
		RoomID: roomID,
		Size:   DefaultSize,
		Users:  make(map[string]*UserEntity),
	}
}

// Self returns the local player's entity, or nil before join.ack and
// snapshot have both arrived.
func (w *World) Self() *UserEntity {
	if w == nil || w.Me == "" {
		return nil
	}
	return w.Users[w.Me]
}

// User returns the entity for id, or nil.
func (w *World) User(id string) *UserEntity {
	if w == nil {
		return nil
	}
	return w.Users[id]
}

// IDs returns the user ids in sorted order.
func (w *World) IDs() []string {
	if w == nil {
		return nil
	}
	ids := make([]string, 0, len(w.Users))
	for id := range w.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy that the caller may modify.
func (w *World) Clone() *World {
	if w == nil {
		return nil
	}
	c := *w
	c.Users = make(map[string]*UserEntity, len(w.Users))
	for id, e := range w.Users {
		ec := e.clone()
		if e.Avatar != nil {
			a := *e.Avatar
			ec.Avatar = &a
		}
		if e.Bubble != nil {
			b := *e.Bubble
			ec.Bubble = &b
		}
		c.Users[id] = ec
	}
	if w.Rules != nil {
		r := *w.Rules
		if r.ChatRadius != nil {
			cr := *r.ChatRadius
			r.ChatRadius = &cr
		}
		c.Rules = &r
	}
	c.Chat = append([]ChatLine(nil), w.Chat...)
	return &c
}

// ExpireBubbles returns w without bubbles that have expired at now. If none
// have, w itself is returned.
func (w *World) ExpireBubbles(now time.Time) *World {
	if w == nil {
		return nil
	}
	var next *World
	for id, e := range w.Users {
		if e.Bubble == nil || !e.Bubble.Expired(now) {
			continue
		}
		if next == nil {
			next = w.shallow()
		}
		ec := e.clone()
		ec.Bubble = nil
		next.Users[id] = ec
	}
	if next == nil {
		return w
	}
	return next
}

// WithUsers returns a copy of w whose entities are replaced by fn's result
// for every entity where fn reports a change. Entities are visited in no
// particular order.
func (w *World) WithUsers(fn func(e *UserEntity) (*UserEntity, bool)) *World {
	if w == nil {
		return nil
	}
	var next *World
	for id, e := range w.Users {
		ne, changed := fn(e)
		if !changed {
			continue
		}
		if next == nil {
			next = w.shallow()
		}
		next.Users[id] = ne
	}
	if next == nil {
		return w
	}
	return next
}

// shallow copies w with a fresh users map sharing the entity pointers.
func (w *World) shallow() *World {
	c := *w
	c.Users = make(map[string]*UserEntity, len(w.Users)+1)
	for id, e := range w.Users {
		c.Users[id] = e
	}
	return &c
}

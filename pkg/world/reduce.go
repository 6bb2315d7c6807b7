package world

import (
	"time"

	"github.com/global-bar/bar-web/pkg/protocol"
)

// Reduce applies one inbound event to w and returns the resulting world. It
// never modifies w; when the event changes nothing, w itself is returned. A
// nil w is treated as an empty world.
func Reduce(w *World, ev protocol.Event, now time.Time) *World {
	if w == nil {
		w = New("")
	}

	switch ev := ev.(type) {
	case *protocol.JoinAck:
		return applyJoinAck(w, ev)

	case *protocol.Snapshot:
		next := w.shallowMeta()
		next.Users = make(map[string]*UserEntity, len(ev.Users)+1)
		if ev.You.UserID != "" {
			next.Users[ev.You.UserID] = fromUserData(ev.You)
		}
		for _, u := range ev.Users {
			if u.UserID == "" {
				continue
			}
			next.Users[u.UserID] = fromUserData(u)
		}
		return next

	case *protocol.UserJoined:
		if ev.User.UserID == "" {
			return w
		}
		next := w.shallow()
		next.Users[ev.User.UserID] = fromUserData(ev.User)
		return next

	case *protocol.UserLeft:
		if _, ok := w.Users[ev.UserID]; !ok {
			return w
		}
		next := w.shallow()
		delete(next.Users, ev.UserID)
		return next

	case *protocol.UserMoved:
		next := w.shallow()
		if e, ok := w.Users[ev.UserID]; ok {
			ec := e.clone()
			ec.Pos = Vec2{ev.X, ev.Y}
			next.Users[ev.UserID] = ec
		} else {
			// Late update for a user whose join has not arrived yet.
			next.Users[ev.UserID] = NewUserEntity(ev.UserID, ev.X, ev.Y, "", nil)
		}
		return next

	case *protocol.ChatMessage:
		return applyChat(w, ev, now)

	case *protocol.Pong, *protocol.ServerError, *protocol.Unknown, nil:
		return w

	default:
		return w
	}
}

func applyJoinAck(w *World, ev *protocol.JoinAck) *World {
	next := w.shallowMeta()
	changed := false
	if ev.UserID != "" {
		next.Me = ev.UserID
		changed = true
	}
	if ev.World.W > 0 && ev.World.H > 0 {
		next.Size = ev.World
		changed = true
	}
	if ev.TickRate > 0 || ev.MoveLimitHz > 0 || ev.ChatRadius != nil {
		rules := ServerRules{TickRate: ev.TickRate, MoveLimitHz: ev.MoveLimitHz}
		if ev.ChatRadius != nil {
			r := *ev.ChatRadius
			rules.ChatRadius = &r
		}
		next.Rules = &rules
		changed = true
	}
	if !changed {
		return w
	}
	return next
}

func applyChat(w *World, ev *protocol.ChatMessage, now time.Time) *World {
	next := w.shallowMeta()

	sender := w.Users[ev.FromUserID]
	line := ChatLine{
		ID:         ev.MessageID,
		FromUserID: ev.FromUserID,
		Text:       ev.Text,
		At:         ev.At,
	}
	if sender != nil {
		line.Nickname = sender.Nickname
	}
	next.Chat = appendChat(w.Chat, line)

	if sender != nil {
		ttl := int64(protocol.DefaultBubbleTTLMs)
		if ev.BubbleTTLMs != nil {
			ttl = *ev.BubbleTTLMs
		}
		ec := sender.clone()
		ec.Bubble = &Bubble{
			Text:      ev.Text,
			ExpiresAt: now.Add(time.Duration(ttl) * time.Millisecond),
		}
		next = next.shallow()
		next.Users[ev.FromUserID] = ec
	}
	return next
}

// appendChat returns a new history ending in line, holding at most
// protocol.MaxChatHistory entries.
func appendChat(history []ChatLine, line ChatLine) []ChatLine {
	start := 0
	if len(history)+1 > protocol.MaxChatHistory {
		start = len(history) + 1 - protocol.MaxChatHistory
	}
	out := make([]ChatLine, 0, len(history)-start+1)
	out = append(out, history[start:]...)
	return append(out, line)
}

// shallowMeta copies w, sharing the users map. Callers that change users
// must replace the map.
func (w *World) shallowMeta() *World {
	c := *w
	return &c
}

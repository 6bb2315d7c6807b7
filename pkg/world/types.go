package world

import (
	"time"

	"github.com/global-bar/bar-web/pkg/protocol"
)

// DefaultSize is the room size assumed until the server advertises one.
var DefaultSize = protocol.WorldSize{W: 320, H: 180}

// Vec2 is a point or displacement in world units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Facing is the direction an entity is drawn facing.
type Facing uint8

const (
	FacingDown Facing = iota
	FacingUp
	FacingLeft
	FacingRight
)

// String returns the lowercase direction name.
func (f Facing) String() string {
	switch f {
	case FacingDown:
		return "down"
	case FacingUp:
		return "up"
	case FacingLeft:
		return "left"
	case FacingRight:
		return "right"
	default:
		return "unknown"
	}
}

// MarshalText encodes the facing as its name.
func (f Facing) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Bubble is a transient chat annotation.
type Bubble struct {
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the bubble is gone at now.
func (b *Bubble) Expired(now time.Time) bool {
	return b == nil || !now.Before(b.ExpiresAt)
}

// UserEntity is one participant.
type UserEntity struct {
	ID       string           `json:"userId"`
	Nickname string           `json:"nickname,omitempty"`
	Avatar   *protocol.Avatar `json:"avatar,omitempty"`

	Pos           Vec2 `json:"pos"`
	RenderPos     Vec2 `json:"renderPos"`
	PrevRenderPos Vec2 `json:"-"`

	Facing Facing  `json:"facing"`
	Bubble *Bubble `json:"bubble,omitempty"`
}

// NewUserEntity returns an entity at (x, y) facing down, with its displayed
// position equal to its authoritative one.
func NewUserEntity(id string, x, y float64, nickname string, avatar *protocol.Avatar) *UserEntity {
	p := Vec2{x, y}
	return &UserEntity{
		ID:            id,
		Nickname:      nickname,
		Avatar:        avatar,
		Pos:           p,
		RenderPos:     p,
		PrevRenderPos: p,
	}
}

func fromUserData(u protocol.UserData) *UserEntity {
	return NewUserEntity(u.UserID, u.X, u.Y, u.Nickname, u.Avatar)
}

// ActiveBubble returns the bubble if it has not expired at now.
func (e *UserEntity) ActiveBubble(now time.Time) *Bubble {
	if e == nil || e.Bubble.Expired(now) {
		return nil
	}
	return e.Bubble
}

// clone returns a shallow copy. Avatar and Bubble are immutable and shared.
func (e *UserEntity) clone() *UserEntity {
	c := *e
	return &c
}

// ServerRules are the parameters advertised in join.ack.
type ServerRules struct {
	TickRate    float64  `json:"tickRate"`
	MoveLimitHz float64  `json:"moveLimitHz"`
	ChatRadius  *float64 `json:"chatRadius,omitempty"`
}

// ChatLine is one entry of the chat history.
type ChatLine struct {
	ID         string `json:"id"`
	FromUserID string `json:"fromUserId"`
	Nickname   string `json:"nickname,omitempty"`
	Text       string `json:"text"`
	At         string `json:"at"`
}

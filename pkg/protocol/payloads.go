package protocol

import (
	"encoding/json"
	"errors"
)

// Avatar describes how a participant wants to be drawn.
type Avatar struct {
	Skin  string `json:"skin,omitempty"`
	Color string `json:"color,omitempty"`
}

// Keys is a snapshot of the four movement keys.
type Keys struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// Moving reports whether any movement key is pressed.
func (k Keys) Moving() bool {
	return k.Up || k.Down || k.Left || k.Right
}

// =============================================================================
// Client → server payloads
// =============================================================================

// Join is the payload of a join envelope.
type Join struct {
	Nickname string  `json:"nickname"`
	Avatar   *Avatar `json:"avatar,omitempty"`
}

// MoveIntent is the payload of a move.intent envelope.
type MoveIntent struct {
	Keys       Keys  `json:"keys"`
	ClientTick int64 `json:"clientTick"`
}

// ChatSay is the payload of a chat.say envelope.
type ChatSay struct {
	Text        string `json:"text"`
	BubbleTTLMs *int64 `json:"bubbleTtlMs,omitempty"`
}

// =============================================================================
// Shared shapes
// =============================================================================

// WorldSize is the bounding size of a room in world units.
type WorldSize struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// UserData is one participant as described by the server.
type UserData struct {
	UserID   string  `json:"userId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Nickname string  `json:"nickname,omitempty"`
	Avatar   *Avatar `json:"avatar,omitempty"`
}

var (
	errMissingUserID   = errors.New("missing userId")
	errMissingPosition = errors.New("missing x/y")
)

// UnmarshalJSON rejects user records without an id or a position. A record
// absent from its payload is never unmarshaled; ParseEvent rejects those.
func (u *UserData) UnmarshalJSON(data []byte) error {
	var wire struct {
		UserID   string   `json:"userId"`
		X        *float64 `json:"x"`
		Y        *float64 `json:"y"`
		Nickname string   `json:"nickname"`
		Avatar   *Avatar  `json:"avatar"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.UserID == "" {
		return errMissingUserID
	}
	if wire.X == nil || wire.Y == nil {
		return errMissingPosition
	}
	*u = UserData{
		UserID:   wire.UserID,
		X:        *wire.X,
		Y:        *wire.Y,
		Nickname: wire.Nickname,
		Avatar:   wire.Avatar,
	}
	return nil
}

package client

import "errors"

var (
	// ErrNotJoined is returned by send operations before join.ack.
	ErrNotJoined = errors.New("client: not joined")

	// ErrEmptyChat is returned when the chat text is blank after trimming.
	ErrEmptyChat = errors.New("client: empty chat message")

	// ErrRateLimited is returned when a move intent exceeds the room's
	// move rate.
	ErrRateLimited = errors.New("client: move rate exceeded")

	// ErrBlocked is returned when prediction rejects every requested axis.
	ErrBlocked = errors.New("client: movement blocked")

	// ErrNoRoom is returned by Connect for an empty room id.
	ErrNoRoom = errors.New("client: room id required")
)

package protocol

// MaxEnvelopeBytes bounds a single inbound frame. Rooms are small; a snapshot
// of a few hundred users fits comfortably.
const MaxEnvelopeBytes = 256 * 1024

// MaxChatHistory is the number of chat lines a client keeps.
const MaxChatHistory = 50

// DefaultBubbleTTLMs is used when a chat message does not carry its own TTL.
const DefaultBubbleTTLMs = 3000

// Package protocol implements the JSON envelope protocol spoken between the
// bar client and the room server.
//
// Every message exchanged on the connection is a single Envelope. The shape of
// the payload is determined solely by the envelope type, which is drawn from a
// closed, versioned vocabulary.
//
// # Wire Format
//
//	{
//	  "v": 1,
//	  "type": "user.moved",
//	  "eventId": "2f1c...",
//	  "roomId": "lobby",
//	  "userId": "u1",
//	  "seq": 42,
//	  "ts": "2025-01-02T03:04:05.678Z",
//	  "payload": {"userId": "u2", "x": 120, "y": 88}
//	}
//
// # Message Types
//
// Client → server:
//
//   - join: {nickname, avatar?}
//   - move.intent: {keys:{up,down,left,right}, clientTick}
//   - chat.say: {text, bubbleTtlMs?}
//   - ping
//
// Server → client:
//
//   - join.ack: {userId, tickRate, moveLimitHz, chatRadius?, world:{w,h}}
//   - snapshot: {you, users}
//   - user.joined: {user}
//   - user.left: {userId}
//   - user.moved: {userId, x, y, serverTick?}
//   - chat.message: {messageId, fromUserId, text, at, bubbleTtlMs?}
//   - pong
//   - error: {code, message}
//
// # Decoding
//
// Decode never panics. It reports a *DecodeError for the caller to log and
// drop. An unrecognized type is not an error: ParseEvent returns an Unknown
// event so that newer servers can add message types without breaking older
// clients.
package protocol

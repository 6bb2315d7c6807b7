// Package world is the client's mirror of a room.
//
// A *World is an immutable value. Reduce folds one inbound server event into
// a world and returns the next one, copying only what changed; the input is
// never modified. Because worlds are never mutated after construction, the
// latest one can be handed to renderers and other goroutines without
// locking. Use Clone to obtain a private, mutable copy.
//
// Each UserEntity carries two positions. Pos is authoritative: it changes
// only when Reduce applies a server event. RenderPos is what is drawn: it
// is advanced toward Pos by the pacing loop. The two are equal only when an
// entity is created.
package world

// Package pacing advances displayed positions toward authoritative ones,
// once per render frame.
//
// Each frame moves every entity's RenderPos a fraction alpha of the
// remaining distance toward its Pos. Alpha grows with the frame's duration,
// so motion looks the same at any refresh rate, and is capped below one so a
// long stall never teleports an entity in a single frame. Facing follows the
// dominant axis of the frame's displayed motion once it exceeds a small dead
// zone.
//
// A Pacer binds this to a FrameSource and a Renderer. It performs no I/O
// and tolerates frames of any duration, including zero.
package pacing

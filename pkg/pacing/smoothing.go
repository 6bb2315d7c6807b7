package pacing

import (
	"math"
	"time"

	"github.com/global-bar/bar-web/pkg/world"
)

// Smoothing parameterizes the per-frame interpolation.
type Smoothing struct {
	// ReferenceFrame is the frame duration at which alpha reaches 1 before
	// clamping.
	ReferenceFrame time.Duration

	// MaxAlpha caps alpha. It must lie in (0, 1).
	MaxAlpha float64

	// DeadZone is the per-frame displacement below which facing is kept.
	DeadZone float64

	// SnapDistance snaps the displayed position onto the target once both
	// axes are closer than this.
	SnapDistance float64
}

// DefaultSmoothing returns a 16ms reference frame, alpha capped at 0.9, a
// 0.1 unit dead zone and a 0.01 unit snap.
func DefaultSmoothing() Smoothing {
	return Smoothing{
		ReferenceFrame: 16 * time.Millisecond,
		MaxAlpha:       0.9,
		DeadZone:       0.1,
		SnapDistance:   0.01,
	}
}

func (s Smoothing) withDefaults() Smoothing {
	def := DefaultSmoothing()
	if s.ReferenceFrame <= 0 {
		s.ReferenceFrame = def.ReferenceFrame
	}
	if s.MaxAlpha <= 0 || s.MaxAlpha >= 1 {
		s.MaxAlpha = def.MaxAlpha
	}
	if s.DeadZone < 0 {
		s.DeadZone = def.DeadZone
	}
	if s.SnapDistance < 0 {
		s.SnapDistance = 0
	}
	return s
}

// Alpha returns the interpolation fraction for a frame of duration dt.
func (s Smoothing) Alpha(dt time.Duration) float64 {
	s = s.withDefaults()
	if dt <= 0 {
		return 0
	}
	return math.Min(s.MaxAlpha, float64(dt)/float64(s.ReferenceFrame))
}

// Step returns e advanced by one frame with fraction alpha. The input is not
// modified.
func Step(e *world.UserEntity, alpha, deadZone, snap float64) *world.UserEntity {
	next := *e
	next.PrevRenderPos = e.RenderPos
	next.RenderPos = world.Vec2{
		X: lerp(e.RenderPos.X, e.Pos.X, alpha),
		Y: lerp(e.RenderPos.Y, e.Pos.Y, alpha),
	}
	if math.Abs(next.Pos.X-next.RenderPos.X) < snap && math.Abs(next.Pos.Y-next.RenderPos.Y) < snap {
		next.RenderPos = next.Pos
	}

	d := next.RenderPos.Sub(next.PrevRenderPos)
	if math.Abs(d.X) > deadZone || math.Abs(d.Y) > deadZone {
		next.Facing = facingOf(d)
	}
	return &next
}

// Advance steps every entity of w by one frame of duration dt and then
// drops bubbles expired at now. Entities already at rest are shared with w.
func Advance(w *world.World, dt time.Duration, now time.Time, s Smoothing) *world.World {
	if w == nil {
		return nil
	}
	s = s.withDefaults()
	if alpha := s.Alpha(dt); alpha > 0 {
		w = w.WithUsers(func(e *world.UserEntity) (*world.UserEntity, bool) {
			if e.RenderPos == e.Pos && e.PrevRenderPos == e.Pos {
				return e, false
			}
			return Step(e, alpha, s.DeadZone, s.SnapDistance), true
		})
	}
	return w.ExpireBubbles(now)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func facingOf(d world.Vec2) world.Facing {
	if math.Abs(d.X) > math.Abs(d.Y) {
		if d.X > 0 {
			return world.FacingRight
		}
		return world.FacingLeft
	}
	if d.Y > 0 {
		return world.FacingDown
	}
	return world.FacingUp
}

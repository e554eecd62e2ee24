package pacer

import "time"

// GameTime is the timing snapshot handed to Update and Draw.
type GameTime struct {
	TotalGameTime   time.Duration
	ElapsedGameTime time.Duration
	IsRunningSlowly bool
}

package core

import "time"

// Clock is a monotonic stopwatch. Samples are durations since Start and never
// go backwards.
type Clock struct {
	startTime time.Time
	running   bool
	elapsed   time.Duration
}

func NewClock() *Clock {
	return &Clock{}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = time.Since(c.startTime)
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = time.Now()
	c.running = true
	c.elapsed = 0
}

// Restart is Start under the name the game loop uses.
func (c *Clock) Restart() {
	c.Start()
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.Update()
	c.running = false
}

func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}

// Sample updates the clock and returns the new elapsed time.
func (c *Clock) Sample() time.Duration {
	c.Update()
	return c.elapsed
}

func (c *Clock) IsRunning() bool {
	return c.running
}

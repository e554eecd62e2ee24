package pacer

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/metronome/engine/core"
)

const (
	// DefaultTargetElapsedTime is one frame at 60Hz.
	DefaultTargetElapsedTime = 16666667 * time.Nanosecond
	DefaultInactiveSleepTime = 20 * time.Millisecond
	// DefaultMaxElapsedTime bounds the catch-up work done after a stall.
	DefaultMaxElapsedTime = 500 * time.Millisecond

	runningSlowlyLag = 5
)

// FramePacer decides how many updates to run per frame and how long to wait
// before running them. It is owned by the game goroutine; only Dispose may be
// called from elsewhere.
type FramePacer struct {
	hooks Hooks

	clock        Clock
	sleep        func(time.Duration)
	spin         func()
	sleepFloor   time.Duration
	previousTime time.Duration

	targetElapsedTime time.Duration
	inactiveSleepTime time.Duration
	maxElapsedTime    time.Duration
	isFixedTimeStep   bool

	accumulatedElapsedTime time.Duration
	updateFrameLag         int
	forceElapsedTimeToZero bool
	suppressDraw           bool

	estimator *SleepPrecisionEstimator
	gameTime  GameTime
	disposed  atomic.Bool
}

func NewFramePacer(hooks Hooks, opts ...Option) *FramePacer {
	p := &FramePacer{
		hooks:             hooks,
		sleep:             time.Sleep,
		spin:              spinOnce,
		targetElapsedTime: DefaultTargetElapsedTime,
		inactiveSleepTime: DefaultInactiveSleepTime,
		maxElapsedTime:    DefaultMaxElapsedTime,
		isFixedTimeStep:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = defaultClock()
	}
	p.estimator = NewSleepPrecisionEstimator(p.sleepFloor)
	p.previousTime = p.clock.Sample()
	return p
}

// Reset drops any time accumulated so far and restarts the game clock from the
// current sample. The host calls it right before entering its loop.
func (p *FramePacer) Reset() error {
	if p.disposed.Load() {
		return core.ErrObjectDisposed
	}
	p.previousTime = p.clock.Sample()
	p.accumulatedElapsedTime = 0
	p.updateFrameLag = 0
	p.gameTime = GameTime{}
	return nil
}

// Tick runs one frame: wait for the target time in fixed step mode, poll
// events, run the update steps and draw.
func (p *FramePacer) Tick() error {
	if p.disposed.Load() {
		return core.ErrObjectDisposed
	}

	if p.hooks.IsActive != nil && !p.hooks.IsActive() && p.inactiveSleepTime >= time.Millisecond {
		p.sleep(p.inactiveSleepTime)
	}

	p.advanceElapsedTime()

	if p.isFixedTimeStep {
		for p.accumulatedElapsedTime+p.estimator.WorstCase() < p.targetElapsedTime {
			p.sleep(time.Millisecond)
			p.estimator.Observe(p.advanceElapsedTime())
		}
		for p.accumulatedElapsedTime < p.targetElapsedTime {
			p.spin()
			p.advanceElapsedTime()
		}
	}

	if p.hooks.PollEvents != nil {
		p.hooks.PollEvents()
	}

	if p.accumulatedElapsedTime > p.maxElapsedTime {
		p.accumulatedElapsedTime = p.maxElapsedTime
	}

	if p.isFixedTimeStep {
		if err := p.fixedStep(); err != nil {
			return err
		}
	} else {
		if err := p.variableStep(); err != nil {
			return err
		}
	}

	if p.suppressDraw {
		p.suppressDraw = false
		return nil
	}
	return p.draw()
}

func (p *FramePacer) fixedStep() error {
	p.gameTime.ElapsedGameTime = p.targetElapsedTime
	stepCount := 0
	for p.accumulatedElapsedTime >= p.targetElapsedTime {
		p.gameTime.TotalGameTime += p.targetElapsedTime
		p.accumulatedElapsedTime -= p.targetElapsedTime
		stepCount++

		if err := p.update(); err != nil {
			return err
		}
	}

	p.updateFrameLag += max(0, stepCount-1)
	if p.gameTime.IsRunningSlowly {
		if p.updateFrameLag == 0 {
			p.gameTime.IsRunningSlowly = false
		}
	} else if p.updateFrameLag >= runningSlowlyLag {
		p.gameTime.IsRunningSlowly = true
	}
	// a frame that ran exactly one step is a frame we kept up, pay back some lag
	if stepCount == 1 && p.updateFrameLag > 0 {
		p.updateFrameLag--
	}

	p.gameTime.ElapsedGameTime = p.targetElapsedTime * time.Duration(stepCount)
	return nil
}

func (p *FramePacer) variableStep() error {
	if p.forceElapsedTimeToZero {
		p.gameTime.ElapsedGameTime = 0
		p.forceElapsedTimeToZero = false
	} else {
		p.gameTime.ElapsedGameTime = p.accumulatedElapsedTime
		p.gameTime.TotalGameTime += p.gameTime.ElapsedGameTime
	}
	p.accumulatedElapsedTime = 0
	return p.update()
}

func (p *FramePacer) update() error {
	if p.disposed.Load() {
		return core.ErrObjectDisposed
	}
	if p.hooks.Update == nil {
		return nil
	}
	if err := p.hooks.Update(p.gameTime); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

func (p *FramePacer) draw() error {
	if p.hooks.BeginDraw != nil && !p.hooks.BeginDraw() {
		return nil
	}
	if p.hooks.Draw != nil {
		if err := p.hooks.Draw(p.gameTime); err != nil {
			return fmt.Errorf("draw: %w", err)
		}
	}
	if p.hooks.EndDraw != nil {
		if err := p.hooks.EndDraw(); err != nil {
			return fmt.Errorf("end draw: %w", err)
		}
	}
	return nil
}

func (p *FramePacer) advanceElapsedTime() time.Duration {
	current := p.clock.Sample()
	advanced := current - p.previousTime
	if advanced < 0 {
		advanced = 0
	}
	p.accumulatedElapsedTime += advanced
	p.previousTime = current
	return advanced
}

func (p *FramePacer) SetTargetElapsedTime(d time.Duration) error {
	if p.disposed.Load() {
		return core.ErrObjectDisposed
	}
	if d <= 0 {
		return fmt.Errorf("%w: target elapsed time must be positive, got %s", core.ErrInvalidArgument, d)
	}
	p.targetElapsedTime = d
	return nil
}

func (p *FramePacer) TargetElapsedTime() time.Duration {
	return p.targetElapsedTime
}

func (p *FramePacer) SetInactiveSleepTime(d time.Duration) error {
	if p.disposed.Load() {
		return core.ErrObjectDisposed
	}
	if d < 0 {
		return fmt.Errorf("%w: inactive sleep time must not be negative, got %s", core.ErrInvalidArgument, d)
	}
	p.inactiveSleepTime = d
	return nil
}

func (p *FramePacer) InactiveSleepTime() time.Duration {
	return p.inactiveSleepTime
}

func (p *FramePacer) SetMaxElapsedTime(d time.Duration) error {
	if p.disposed.Load() {
		return core.ErrObjectDisposed
	}
	if d <= 0 {
		return fmt.Errorf("%w: max elapsed time must be positive, got %s", core.ErrInvalidArgument, d)
	}
	p.maxElapsedTime = d
	return nil
}

func (p *FramePacer) MaxElapsedTime() time.Duration {
	return p.maxElapsedTime
}

// SetFixedTimeStep switches between fixed and variable step. It takes effect
// on the next Tick.
func (p *FramePacer) SetFixedTimeStep(fixed bool) {
	p.isFixedTimeStep = fixed
}

func (p *FramePacer) IsFixedTimeStep() bool {
	return p.isFixedTimeStep
}

// ResetElapsedTime makes the next variable step update report zero elapsed
// time. Fixed step ignores it.
func (p *FramePacer) ResetElapsedTime() {
	if !p.isFixedTimeStep {
		p.forceElapsedTimeToZero = true
	}
}

// SuppressDraw skips the draw phase of the next Tick only.
func (p *FramePacer) SuppressDraw() {
	p.suppressDraw = true
}

func (p *FramePacer) GameTime() GameTime {
	return p.gameTime
}

func (p *FramePacer) AccumulatedTime() time.Duration {
	return p.accumulatedElapsedTime
}

func (p *FramePacer) UpdateLag() int {
	return p.updateFrameLag
}

func (p *FramePacer) WorstCaseSleepPrecision() time.Duration {
	return p.estimator.WorstCase()
}

// Dispose tears the pacer down. Every later call that can fail returns
// core.ErrObjectDisposed.
func (p *FramePacer) Dispose() {
	p.disposed.Store(true)
}

func (p *FramePacer) IsDisposed() bool {
	return p.disposed.Load()
}

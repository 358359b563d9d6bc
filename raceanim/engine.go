// Package raceanim drives the cosmetic race progression shown while a
// settled wager is revealed. It owns no game logic: callers hand it the
// decoded podium and an output surface, and it animates 16 lanes toward the
// finish with the podium lanes biased to pull ahead.
package raceanim

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/decred/slog"
)

const (
	// Lanes is the fixed field size.
	Lanes = 16

	defaultDuration = 6 * time.Second
	defaultTick     = 50 * time.Millisecond

	// Podium speed multipliers for 1st/2nd/3rd; everyone else draws a
	// baseline speed in [1.0, 1.2).
	firstSpeed  = 1.5
	secondSpeed = 1.4
	thirdSpeed  = 1.3

	// Progress at which podium lanes get their winner marker.
	revealThreshold = 0.95
)

// Surface is the output sink the driver paints onto. Positions are
// fractions of the track in [0,1]; implementations own all visual concerns.
type Surface interface {
	SetPosition(lane int, pos float64)
	MarkWinner(lane int)
}

// Driver runs one race animation at a time. Duration and Tick may be
// shortened by tests; zero values fall back to the defaults.
type Driver struct {
	log slog.Logger
	rng *rand.Rand

	Duration time.Duration
	Tick     time.Duration
}

func New(log slog.Logger) *Driver {
	return &Driver{
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		Duration: defaultDuration,
		Tick:     defaultTick,
	}
}

// SeedRNG pins the baseline speed draws, for reproducible runs.
func (d *Driver) SeedRNG(seed int64) {
	d.rng = rand.New(rand.NewSource(seed))
}

// Play animates winners across the surface and returns once every lane has
// reached the finish. Cancelling ctx stops the animation quietly; no
// business effect depends on it completing.
func (d *Driver) Play(ctx context.Context, winners [3]int, surface Surface) error {
	duration := d.Duration
	if duration <= 0 {
		duration = defaultDuration
	}
	tick := d.Tick
	if tick <= 0 {
		tick = defaultTick
	}

	speeds := make([]float64, Lanes)
	for i := range speeds {
		speeds[i] = 1.0 + d.rng.Float64()*0.2
	}
	for rank, lane := range winners {
		if lane < 0 || lane >= Lanes {
			continue
		}
		switch rank {
		case 0:
			speeds[lane] = firstSpeed
		case 1:
			speeds[lane] = secondSpeed
		case 2:
			speeds[lane] = thirdSpeed
		}
	}

	d.log.Debugf("race animation start: winners=%v duration=%s", winners, duration)

	marked := make([]bool, Lanes)
	start := time.Now()
	t := time.NewTicker(tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Debugf("race animation cancelled")
			return nil
		case <-t.C:
		}

		progress := math.Min(float64(time.Since(start))/float64(duration), 1)
		// Quadratic ease-out so motion decelerates near the finish.
		eased := 1 - math.Pow(1-progress, 2)

		for lane := 0; lane < Lanes; lane++ {
			surface.SetPosition(lane, math.Min(eased*speeds[lane], 1))
			if eased >= revealThreshold && !marked[lane] && isWinner(winners, lane) {
				marked[lane] = true
				surface.MarkWinner(lane)
			}
		}

		if progress >= 1 {
			d.log.Debugf("race animation complete")
			return nil
		}
	}
}

func isWinner(winners [3]int, lane int) bool {
	for _, w := range winners {
		if w == lane {
			return true
		}
	}
	return false
}

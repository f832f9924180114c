// SPDX-License-Identifier: MIT
package source

import "time"

// Player releases a clip against a wall clock: every call to Next returns the
// samples that became due since the previous call, so the analysers see audio
// at the rate a listener would hear it regardless of the refresh rate.
//
// A Player is not safe for concurrent use.
type Player struct {
	clip *Clip

	pos     int       // Next sample to release
	base    int       // Position when the clock was last (re)started
	since   time.Time // Wall time of the last (re)start
	started bool
	paused  bool
}

// NewPlayer creates a stopped player for clip.
func NewPlayer(clip *Clip) *Player {
	return &Player{clip: clip}
}

// Start anchors the playback clock at now. Calling Start again restarts the
// clip from the beginning.
func (p *Player) Start(now time.Time) {
	p.pos, p.base = 0, 0
	p.since = now
	p.started = true
	p.paused = false
}

// Restart rewinds to the first sample and restarts the clock.
func (p *Player) Restart(now time.Time) {
	p.Start(now)
}

// Pause stops the clock. Samples due before now are still released by the
// next call to Next after Resume.
func (p *Player) Pause(now time.Time) {
	if !p.started || p.paused {
		return
	}
	p.base = p.target(now)
	p.paused = true
}

// Resume continues a paused clip from where it was paused.
func (p *Player) Resume(now time.Time) {
	if !p.started || !p.paused {
		return
	}
	p.since = now
	p.paused = false
}

// Paused reports whether the clock is stopped.
func (p *Player) Paused() bool { return p.paused }

// target is the sample index that playback has reached at now.
func (p *Player) target(now time.Time) int {
	if p.paused {
		return p.base
	}
	elapsed := now.Sub(p.since)
	if elapsed < 0 {
		elapsed = 0
	}
	t := p.base + int(elapsed.Seconds()*float64(p.clip.SampleRate))
	return min(t, len(p.clip.Samples))
}

// Next returns the chunk of samples due at now and whether the end of the
// clip has been reached. The chunk aliases the clip and must not be modified.
// A player that was never started starts at now.
func (p *Player) Next(now time.Time) (chunk []float64, done bool) {
	if !p.started {
		p.Start(now)
	}
	t := max(p.target(now), p.pos)
	chunk = p.clip.Samples[p.pos:t]
	p.pos = t
	return chunk, p.pos >= len(p.clip.Samples)
}

// Position returns the playback position.
func (p *Player) Position() time.Duration {
	if p.clip.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(p.pos) / float64(p.clip.SampleRate) * float64(time.Second))
}

// Done reports whether every sample has been released.
func (p *Player) Done() bool {
	return p.pos >= len(p.clip.Samples)
}

// SampleRate returns the clip's sample rate.
func (p *Player) SampleRate() int {
	return p.clip.SampleRate
}

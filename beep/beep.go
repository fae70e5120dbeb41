// Package beep plays short audio cues for session transitions.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

type Cue int

const (
	Start Cue = iota
	End
	Error
)

const (
	sampleRate = 44100

	// Start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error: low pitch double beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	cueOnce    sync.Once
	cueSamples map[Cue][]int16
)

func samplesFor(c Cue) []int16 {
	cueOnce.Do(func() {
		cueSamples = map[Cue][]int16{
			Start: generateTick(startFreq, tickDuration, startVolume, startDecay),
			End:   generateTick(endFreq, tickDuration+0.02, endVolume, endDecay),
			Error: generateDoubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay),
		}
	})
	return cueSamples[c]
}

// Play starts the cue and returns without waiting for it to finish.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	play(samplesFor(c))
}

func generateTick(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := generateTick(freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

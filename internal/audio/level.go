package audio

import (
	"encoding/binary"
	"math"
)

// RMS returns the normalized (0..1) energy of a PCM16LE block.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// PauseDetector flags the end of a spoken phrase: speech followed by enough
// consecutive quiet frames. Hysteresis keeps it from flickering.
type PauseDetector struct {
	SpeechThreshold  float64
	SilenceThreshold float64
	SilenceFrames    int

	inSpeech     bool
	silenceCount int
}

// NewPauseDetector suits 100ms frames at 16kHz.
func NewPauseDetector() *PauseDetector {
	return &PauseDetector{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		SilenceFrames:    6,
	}
}

// Push feeds one frame and reports whether a pause boundary was crossed.
func (d *PauseDetector) Push(pcm []byte) bool {
	level := RMS(pcm)
	if !d.inSpeech {
		if level >= d.SpeechThreshold {
			d.inSpeech = true
			d.silenceCount = 0
		}
		return false
	}
	if level >= d.SilenceThreshold {
		d.silenceCount = 0
		return false
	}
	d.silenceCount++
	if d.silenceCount < d.SilenceFrames {
		return false
	}
	d.inSpeech = false
	d.silenceCount = 0
	return true
}

// Reset clears internal state.
func (d *PauseDetector) Reset() {
	d.inSpeech = false
	d.silenceCount = 0
}

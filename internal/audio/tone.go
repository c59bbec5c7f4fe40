package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Tone synthesizes a 440Hz PCM16LE sine block. Handy for exercising level
// detection without a microphone.
func Tone(sampleRate int, d time.Duration, amplitude float64) []byte {
	n := BytesForDuration(sampleRate, d) / 2
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
	return out
}

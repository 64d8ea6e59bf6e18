package capture

import (
	"io"
	"math"
	"time"

	"github.com/pkg/errors"
)

const (
	frameDuration = 30 * time.Millisecond
	// preRollFrames of audio before the onset are kept so the first
	// syllable is not clipped.
	preRollFrames = 10
	// energyRatio scales the ambient level into the speech threshold.
	energyRatio  = 1.5
	minThreshold = 0.01
)

// Detector finds one utterance in a PCM stream using RMS energy. All
// durations are measured in audio time, not wall time.
type Detector struct {
	SampleRate      int
	Channels        int
	Calibration     time.Duration
	Timeout         time.Duration
	PhraseLimit     time.Duration
	TrailingSilence time.Duration
}

func (d Detector) bytesFor(dur time.Duration) int {
	channels := d.Channels
	if channels <= 0 {
		channels = 1
	}
	samples := int64(dur) * int64(d.SampleRate) / int64(time.Second)
	return int(samples) * 2 * channels
}

// Listen calibrates against ambient noise, waits for speech onset and
// returns the PCM of the utterance up to the trailing silence or the phrase
// limit. onset, if set, is called once calibration is done.
func (d Detector) Listen(r io.Reader, onset func()) ([]byte, error) {
	frameBytes := d.bytesFor(frameDuration)
	if frameBytes == 0 {
		return nil, errors.New("invalid audio configuration")
	}
	frame := make([]byte, frameBytes)

	ambient, err := d.calibrate(r, frame)
	if err != nil {
		return nil, err
	}
	threshold := math.Max(ambient*energyRatio, minThreshold)
	if onset != nil {
		onset()
	}

	var preRoll [][]byte
	waited := 0
	waitBytes := d.bytesFor(d.Timeout)
	for {
		if _, err := io.ReadFull(r, frame); err != nil {
			return nil, errors.Wrap(ErrWaitTimeout, "stream ended before speech")
		}
		if RMSEnergy(frame) > threshold {
			break
		}
		waited += frameBytes
		if waited >= waitBytes {
			return nil, ErrWaitTimeout
		}
		preRoll = append(preRoll, append([]byte(nil), frame...))
		if len(preRoll) > preRollFrames {
			preRoll = preRoll[1:]
		}
	}

	var phrase []byte
	for _, f := range preRoll {
		phrase = append(phrase, f...)
	}
	phrase = append(phrase, frame...)

	limit := d.bytesFor(d.PhraseLimit)
	trailing := d.bytesFor(d.TrailingSilence)
	silence, spoken := 0, frameBytes
	for spoken < limit {
		n, err := io.ReadFull(r, frame)
		phrase = append(phrase, frame[:n]...)
		if err != nil {
			// the recorder went away mid phrase; keep what we have
			break
		}
		spoken += n
		if RMSEnergy(frame) > threshold {
			silence = 0
			continue
		}
		silence += n
		if silence >= trailing {
			break
		}
	}
	return phrase, nil
}

func (d Detector) calibrate(r io.Reader, frame []byte) (float64, error) {
	want := d.bytesFor(d.Calibration)
	if want == 0 {
		return 0, nil
	}
	var sum float64
	frames := 0
	for read := 0; read < want; read += len(frame) {
		if _, err := io.ReadFull(r, frame); err != nil {
			return 0, errors.Wrap(err, "calibration read")
		}
		sum += RMSEnergy(frame)
		frames++
	}
	return sum / float64(frames), nil
}

// RMSEnergy is the root mean square of 16-bit little endian PCM, in [0, 1].
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(pcm[i])|int16(pcm[i+1])<<8) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}

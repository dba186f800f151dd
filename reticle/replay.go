package reticle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// maxRecordingLine bounds a single JSON line in a recording
const maxRecordingLine = 1 << 20

// LoadRecording reads a JSON-lines recording of frame messages
func LoadRecording(path string) ([]*FrameMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()
	return ReadRecording(f)
}

// ReadRecording parses one frame message per line. Blank lines and lines
// starting with '#' are skipped.
func ReadRecording(r io.Reader) ([]*FrameMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordingLine)

	var frames []*FrameMessage
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		m, err := DecodeFrame([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}
	return frames, nil
}

// ReplayStep is the outcome of one replayed frame
type ReplayStep struct {
	Index  int
	At     time.Time
	Result TransitionResult
}

// Replay drives a fresh indicator through frames on a mock clock that
// follows the frame timestamps, so animations play out exactly as recorded.
// onStep may be nil.
func Replay(frames []*FrameMessage, cfg IndicatorConfig, renderer NodeRenderer, onStep func(ReplayStep)) (*Indicator, error) {
	mock := clock.NewMock()
	if len(frames) > 0 {
		mock.Set(frames[0].Time())
	}
	ind := New(cfg, renderer, WithClock(mock))

	for idx, m := range frames {
		at := m.Time()
		if at.Before(mock.Now()) {
			return ind, fmt.Errorf("frame %d: timestamp %d goes backwards", idx, m.Timestamp)
		}
		mock.Set(at)

		result := ind.Update(m.ToSample(), m.ToCamera())
		if onStep != nil {
			onStep(ReplayStep{Index: idx, At: at, Result: result})
		}
	}
	return ind, nil
}

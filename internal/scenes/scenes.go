// Package scenes partitions a transcript timeline into fixed-width windows.
//
// Windows start at zero and step by the chunk width; the last one is clipped
// to the transcript duration. A segment belongs to the window containing its
// start, even when it runs past the window's end.
package scenes

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"vidsum/internal/transcript"
)

// Window is one scene of the result.
type Window struct {
	ID         string
	Start      time.Duration
	End        time.Duration
	Transcript string
	Summary    string
}

type windowJSON struct {
	ID         string `json:"id"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
	Transcript string `json:"transcript"`
	Summary    string `json:"summary"`
}

// MarshalJSON encodes bounds as integer seconds.
func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(windowJSON{
		ID:         w.ID,
		Start:      int64(w.Start / time.Second),
		End:        int64(w.End / time.Second),
		Transcript: w.Transcript,
		Summary:    w.Summary,
	})
}

// UnmarshalJSON decodes integer-second bounds.
func (w *Window) UnmarshalJSON(data []byte) error {
	var raw windowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = Window{
		ID:         raw.ID,
		Start:      time.Duration(raw.Start) * time.Second,
		End:        time.Duration(raw.End) * time.Second,
		Transcript: raw.Transcript,
		Summary:    raw.Summary,
	}
	return nil
}

// Duration is the largest segment end.
func Duration(segs []transcript.Segment) time.Duration {
	var longest time.Duration
	for _, seg := range segs {
		if seg.End > longest {
			longest = seg.End
		}
	}
	return longest
}

// Windows lays out empty windows covering [0, duration). A non-positive
// width yields a single window spanning the whole duration.
func Windows(duration, width time.Duration) []Window {
	if duration <= 0 {
		return nil
	}
	if width <= 0 {
		width = duration
	}
	count := int((duration + width - 1) / width)
	out := make([]Window, 0, count)
	for start := time.Duration(0); start < duration; start += width {
		end := start + width
		if end > duration {
			end = duration
		}
		out = append(out, Window{
			ID:    "s" + strconv.Itoa(len(out)+1),
			Start: start,
			End:   end,
		})
	}
	return out
}

// Segment builds windows for segs and fills each window's transcript with
// the space-joined text of the segments that start inside it, in input
// order. Summaries are left empty.
func Segment(segs []transcript.Segment, width time.Duration) []Window {
	windows := Windows(Duration(segs), width)
	if len(windows) == 0 {
		return windows
	}
	step := windows[0].End - windows[0].Start
	texts := make([][]string, len(windows))
	for _, seg := range segs {
		idx := indexFor(seg.Start, step, len(windows))
		texts[idx] = append(texts[idx], strings.TrimSpace(seg.Text))
	}
	for i := range windows {
		windows[i].Transcript = strings.Join(texts[i], " ")
	}
	return windows
}

// indexFor maps a start offset to its window. Starts past the last window
// (possible only when a segment starts at or after the duration, which the
// transcript invariants rule out) clamp to the last window so no text is lost.
func indexFor(start, step time.Duration, count int) int {
	if start < 0 || step <= 0 {
		return 0
	}
	idx := int(start / step)
	if idx >= count {
		idx = count - 1
	}
	return idx
}

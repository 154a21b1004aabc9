// Package transcript defines timestamped speech segments and the transcript
// artifact stored in each job directory.
//
// Segment times are whole seconds. Backends report fractional timestamps;
// Quantize floors the start and ceils the end so a segment never shrinks and
// always keeps a positive length.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"vidsum/internal/fileutil"
)

// Segment is one span of recognized speech.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type segmentJSON struct {
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Text  string `json:"text"`
}

// MarshalJSON encodes times as integer seconds.
func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal(segmentJSON{
		Start: int64(s.Start / time.Second),
		End:   int64(s.End / time.Second),
		Text:  s.Text,
	})
}

// UnmarshalJSON decodes integer-second times.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw segmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Start = time.Duration(raw.Start) * time.Second
	s.End = time.Duration(raw.End) * time.Second
	s.Text = raw.Text
	return nil
}

// Quantize converts fractional second offsets to whole-second bounds.
func Quantize(startSec, endSec float64) (time.Duration, time.Duration) {
	if math.IsNaN(startSec) || startSec < 0 {
		startSec = 0
	}
	if math.IsNaN(endSec) {
		endSec = startSec
	}
	start := time.Duration(math.Floor(startSec)) * time.Second
	end := time.Duration(math.Ceil(endSec)) * time.Second
	if end <= start {
		end = start + time.Second
	}
	return start, end
}

// FromSeconds builds a quantized segment from backend timestamps.
func FromSeconds(startSec, endSec float64, text string) Segment {
	start, end := Quantize(startSec, endSec)
	return Segment{Start: start, End: end, Text: text}
}

// Normalize trims text, drops blank segments, and orders the rest by start
// time. Segments with equal starts keep their original order.
func Normalize(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, seg := range segs {
		seg.Text = strings.Join(strings.Fields(seg.Text), " ")
		if seg.Text == "" {
			continue
		}
		out = append(out, seg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Validate checks the segment invariants: non-negative start, positive
// length, and non-decreasing start order.
func Validate(segs []Segment) error {
	var prev time.Duration
	for i, seg := range segs {
		if seg.Start < 0 {
			return fmt.Errorf("segment %d: negative start %s", i, seg.Start)
		}
		if seg.End <= seg.Start {
			return fmt.Errorf("segment %d: end %s not after start %s", i, seg.End, seg.Start)
		}
		if i > 0 && seg.Start < prev {
			return fmt.Errorf("segment %d: start %s before previous start %s", i, seg.Start, prev)
		}
		prev = seg.Start
	}
	return nil
}

type file struct {
	Segments []Segment `json:"segments"`
}

// Save writes segs to path atomically. An empty transcript is written as an
// empty list so a later run can tell "no speech" from "not transcribed".
func Save(path string, segs []Segment) error {
	if segs == nil {
		segs = []Segment{}
	}
	if err := fileutil.WriteJSONAtomic(path, file{Segments: segs}); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// ErrInvalid marks a transcript file that exists but cannot be trusted.
var ErrInvalid = errors.New("invalid transcript file")

// Load reads a transcript written by Save.
func Load(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Segments *[]Segment `json:"segments"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if payload.Segments == nil {
		return nil, fmt.Errorf("%w: missing segments", ErrInvalid)
	}
	segs := *payload.Segments
	if err := Validate(segs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if segs == nil {
		segs = []Segment{}
	}
	return segs, nil
}

package audio

import (
	"strings"

	"vidsum/internal/language"
	"vidsum/internal/media/ffprobe"
)

// nonSpeechMarkers flag tracks that rarely carry the main dialogue.
var nonSpeechMarkers = []string{
	"commentary",
	"audio description",
	"descriptive",
	"karaoke",
	"instrumental",
	"music only",
	"isolated score",
}

// SelectSpoken picks the audio stream most likely to carry the main
// dialogue. A track in the preferred language wins, then tracks not marked
// as commentary or description, then the default-flagged track, then
// container order. ok is false when streams holds no audio.
func SelectSpoken(streams []ffprobe.Stream, preferredLanguage string) (ffprobe.Stream, bool) {
	want := language.ToISO2(preferredLanguage)
	var (
		best      ffprobe.Stream
		bestScore float64
		found     bool
		order     int
	)
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		score := scoreSpoken(stream, want, order)
		order++
		if !found || score > bestScore {
			best, bestScore, found = stream, score, true
		}
	}
	return best, found
}

func scoreSpoken(stream ffprobe.Stream, want string, order int) float64 {
	score := 0.0
	if want != "" && language.ToISO2(tagValue(stream.Tags, "language", "LANGUAGE", "language_ietf")) == want {
		score += 1000
	}
	if isNonSpeech(stream) {
		score -= 500
	}
	if stream.Disposition["default"] == 1 {
		score += 100
	}
	channels := stream.Channels
	if channels > 8 {
		channels = 8
	}
	score += float64(channels)
	return score - float64(order)*0.1
}

func isNonSpeech(stream ffprobe.Stream) bool {
	if stream.Disposition["comment"] == 1 || stream.Disposition["visual_impaired"] == 1 {
		return true
	}
	title := strings.ToLower(tagValue(stream.Tags, "title", "TITLE", "handler_name", "HANDLER_NAME"))
	for _, marker := range nonSpeechMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

func tagValue(tags map[string]string, keys ...string) string {
	for _, key := range keys {
		if value, ok := tags[key]; ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

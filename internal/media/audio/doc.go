// Package audio converts downloaded media into the mono 16-bit PCM waveform
// the transcription backends expect.
//
// When ffprobe is available the extractor inspects the container first:
// media without any audio stream fails immediately, and multi-track media
// decodes the track SelectSpoken ranks highest instead of ffmpeg's default.
package audio

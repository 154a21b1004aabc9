// Package whisperx runs the WhisperX CLI through uvx and parses its JSON
// output.
//
// WhisperX writes <basename>.json into the output directory. Its segments
// carry fractional second timestamps; callers own quantization and ordering.
package whisperx

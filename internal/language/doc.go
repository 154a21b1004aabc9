// Package language normalizes user-supplied spoken-language hints into the
// ISO 639-1 codes the transcription backends accept.
package language

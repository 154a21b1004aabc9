// Package pipeline runs one job through fetch, audio extraction,
// transcription, and scene segmentation, then persists the scene result.
//
// Each run owns a locked working directory. Artifacts from an earlier run of
// the same job are reused when they are complete, so a job reclaimed after a
// crash resumes at the first stage whose output is missing. Fatal failures
// leave intermediate files in place and write no result; summarization
// failures only degrade the affected window's summary.
package pipeline

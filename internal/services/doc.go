// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, user IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every stage reports
//     failures with the same shape; Details flattens them for job records.
//
// Backend clients for summarization live in subpackages (llm, gemini) and
// the WhisperX command wrapper lives in whisperx.
package services

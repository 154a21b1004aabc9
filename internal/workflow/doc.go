// Package workflow runs the daemon side of vidsum: it claims pending jobs
// from the job store, runs up to max_jobs pipelines at once, keeps their
// heartbeats fresh, and returns jobs orphaned by a dead run to pending.
//
// Jobs left in flight by a previous process are reset when the manager
// starts. While running, a reclaimer resets jobs whose heartbeat is older
// than heartbeat_timeout; their working directories keep the artifacts
// already produced, so the next run resumes.
package workflow

// Package jobs persists job records in SQLite so the CLI, HTTP API, inbox
// watcher, and daemon share one view of every submission.
//
// The store is the pipeline's status sink: it records the in-flight stage,
// exactly one terminal outcome per run, and enough bookkeeping (heartbeats,
// result paths) for the daemon to reclaim abandoned work and for clients to
// locate results. It deliberately carries no scheduling logic beyond FIFO
// claiming of pending jobs.
package jobs

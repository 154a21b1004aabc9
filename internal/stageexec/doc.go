// Package stageexec runs one pipeline stage with consistent logging, timing,
// and job-status persistence.
package stageexec

// Package fileutil holds the small file helpers shared by the pipeline:
// verified copies for local media and atomic writes for artifacts such as
// result.json and cached transcripts.
package fileutil

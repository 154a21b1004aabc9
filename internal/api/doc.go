// Package api exposes job submission and inspection over HTTP.
//
// Routes are served by a chi router: submitting, listing, and describing
// jobs, fetching a finished job's scene result, retrying failed jobs, a
// health report, and the Prometheus scrape endpoint. When a token is
// configured, the /api/jobs routes require it as a bearer token.
package api

// Package llm provides an OpenRouter chat client used as a summarization
// backend.
//
// Client.Summarize sends the configured prompt as the system message and a
// transcript excerpt as the user message, returning the model's plain-text
// reply. Callers decide what to do when it fails; the summary policy layer
// substitutes a sentinel so a single bad window never fails a job.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, 4 attempts by
// default). Retry-After headers are honored up to the max delay. Context
// cancellation aborts retries immediately.
package llm

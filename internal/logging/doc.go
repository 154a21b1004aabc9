// Package logging builds the slog loggers vidsum writes with.
//
// Two formats are supported: a console format whose header reads
// "time LEVEL [component] user/job (stage) - message", and line-delimited
// JSON. Pipeline code tags records through WithContext, which copies the
// job, user, stage, and request identifiers stored by package services.
package logging

// Package fetch resolves a video reference to a single local media file.
//
// Remote references are downloaded with yt-dlp; local paths and file:// URLs
// are copied into the job directory. NormalizeReference strips playlist and
// queue qualifiers so a submission always names exactly one video.
package fetch

// Package ffprobe runs ffprobe and decodes its JSON stream listing.
//
// The audio extractor uses it to confirm a download carries sound and to
// pick the spoken track when a container holds several.
package ffprobe

package httpapi

import (
	"fmt"
	"regexp"
	"strconv"
)

// Kind is the artifact kind a classified request resolves to.
type Kind int

const (
	KindMasterPlaylist Kind = iota
	KindVariantPlaylist
	KindInit
	KindMedia
)

// TrackType distinguishes video/audio/subtitle routes.
type TrackType string

const (
	TrackVideo    TrackType = "v"
	TrackAudio    TrackType = "a"
	TrackSubtitle TrackType = "s"
)

// Request is the classified shape of one URL path (spec §4.11 / §2's
// "path classifier"), turning
// "/{*path}.{ext}/v/{track}.{n}.m4s" into its component parts.
type Request struct {
	BasePath string // path with .{ext} stripped
	Ext      string
	Kind     Kind
	Track    TrackType
	TrackNum int
	Sequence int
}

var (
	masterPattern   = regexp.MustCompile(`^(.+)\.(mp4|m4v|mkv|webm)\.as\.m3u8$`)
	variantPattern  = regexp.MustCompile(`^(.+)\.(mp4|m4v|mkv|webm)/(v|a|s)/(\d+)\.m3u8$`)
	initPattern     = regexp.MustCompile(`^(.+)\.(mp4|m4v|mkv|webm)/(v|a)/(\d+)\.init\.mp4$`)
	mediaPattern    = regexp.MustCompile(`^(.+)\.(mp4|m4v|mkv|webm)/(v|a)/(\d+)\.(\d+)\.m4s$`)
	subMediaPattern = regexp.MustCompile(`^(.+)\.(mp4|m4v|mkv|webm)/s/(\d+)\.(\d+)\.vtt$`)
)

// Classify parses a URL path (without leading slash) into a Request, or
// returns ok=false if the path doesn't match any known shape (spec §4.10
// URL scheme) — a ClientError{PathNotFound} at the caller.
func Classify(path string) (Request, bool) {
	if m := masterPattern.FindStringSubmatch(path); m != nil {
		return Request{BasePath: m[1], Ext: m[2], Kind: KindMasterPlaylist}, true
	}
	if m := variantPattern.FindStringSubmatch(path); m != nil {
		n, _ := strconv.Atoi(m[4])
		return Request{BasePath: m[1], Ext: m[2], Kind: KindVariantPlaylist, Track: TrackType(m[3]), TrackNum: n}, true
	}
	if m := initPattern.FindStringSubmatch(path); m != nil {
		n, _ := strconv.Atoi(m[4])
		return Request{BasePath: m[1], Ext: m[2], Kind: KindInit, Track: TrackType(m[3]), TrackNum: n}, true
	}
	if m := mediaPattern.FindStringSubmatch(path); m != nil {
		n, _ := strconv.Atoi(m[4])
		seq, _ := strconv.Atoi(m[5])
		return Request{BasePath: m[1], Ext: m[2], Kind: KindMedia, Track: TrackType(m[3]), TrackNum: n, Sequence: seq}, true
	}
	if m := subMediaPattern.FindStringSubmatch(path); m != nil {
		n, _ := strconv.Atoi(m[3])
		seq, _ := strconv.Atoi(m[4])
		return Request{BasePath: m[1], Ext: m[2], Kind: KindMedia, Track: TrackSubtitle, TrackNum: n, Sequence: seq}, true
	}
	return Request{}, false
}

// SourcePath renders the full on-disk path for a classified request, given
// an optional media-root prefix (spec §6 --media-root).
func (r Request) SourcePath(mediaRoot string) string {
	if mediaRoot == "" {
		return fmt.Sprintf("%s.%s", r.BasePath, r.Ext)
	}
	return fmt.Sprintf("%s/%s.%s", mediaRoot, r.BasePath, r.Ext)
}

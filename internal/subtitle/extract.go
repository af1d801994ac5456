// Package subtitle extracts text-subtitle packets into cue tuples at index
// time and renders time-sliced WebVTT documents on demand (spec §4.7).
package subtitle

import (
	"regexp"
	"strings"

	"github.com/hlsvod/hlsvod/internal/index"
)

// assOverrideTag matches ASS/SSA override blocks like "{\b1}"; the
// "\N"/"\n"/"\h" escapes are replaced separately in StripASSTags.
var assOverrideTag = regexp.MustCompile(`\{[^}]*\}`)

// StripASSTags removes ASS/SSA override syntax, leaving plain text (spec
// §4.7: "ASS/SSA tag syntax is stripped to plain text").
func StripASSTags(s string) string {
	s = assOverrideTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, `\N`, "\n")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\h`, " ")
	return s
}

// ParseSRTBlock parses one SRT cue's free-text payload (the lines after the
// "HH:MM:SS,mmm --> HH:MM:SS,mmm" timing line), which needs no tag
// stripping beyond trimming.
func ParseSRTBlock(text string) string {
	return strings.TrimSpace(text)
}

// BuildCue normalizes an extracted subtitle packet into an index.Cue; format
// dictates how the payload text is cleaned before storage.
func BuildCue(format index.SubtitleFormat, startTicks, endTicks int64, rawText string) index.Cue {
	var text string
	switch format {
	case index.SubtitleASS:
		text = StripASSTags(rawText)
	default:
		text = ParseSRTBlock(rawText)
	}
	return index.Cue{Start: startTicks, End: endTicks, Text: text}
}

// IsBitmapFormat reports whether a subtitle codec tag is a bitmap format
// that must be excluded from playlists entirely (spec invariant).
func IsBitmapFormat(format index.SubtitleFormat) bool {
	return format == index.SubtitleBitmap
}

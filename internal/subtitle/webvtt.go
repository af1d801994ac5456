package subtitle

import (
	"fmt"
	"strings"

	"github.com/hlsvod/hlsvod/internal/index"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// EscapeText applies the WebVTT/HTML escaping spec §4.7 requires.
func EscapeText(s string) string {
	return escaper.Replace(s)
}

func formatTimestamp(ticks int64, timebase index.Rational) string {
	seconds := timebase.Seconds(ticks)
	if seconds < 0 {
		seconds = 0
	}
	totalMs := int64(seconds*1000 + 0.5)
	ms := totalMs % 1000
	totalS := totalMs / 1000
	s := totalS % 60
	totalM := totalS / 60
	m := totalM % 60
	h := totalM / 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// BuildSegment renders the WebVTT document for the cues intersecting
// [segStart, segEnd) in video timebase ticks, per spec §4.7's literal wire
// format: a WEBVTT header, an X-TIMESTAMP-MAP line, then one cue block per
// intersecting cue.
func BuildSegment(cues []index.Cue, segStart, segEnd int64, videoTimebase index.Rational) string {
	mpegts := segStart * 90000 / nonZero(videoTimebase.Den)

	var b strings.Builder
	b.WriteString("WEBVTT\n")
	fmt.Fprintf(&b, "X-TIMESTAMP-MAP=MPEGTS:%d,LOCAL:00:00:00.000\n\n", mpegts)

	for _, c := range cues {
		if c.End <= segStart || c.Start >= segEnd {
			continue
		}
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			formatTimestamp(c.Start, videoTimebase),
			formatTimestamp(c.End, videoTimebase),
			EscapeText(c.Text),
		)
	}
	return b.String()
}

func nonZero(v int64) int64 {
	if v == 0 {
		return 1
	}
	return v
}

package subtitle

import (
	"regexp"
	"strings"
	"testing"

	"github.com/hlsvod/hlsvod/internal/index"
)

func TestBuildSegmentHeaderAndTimestampMap(t *testing.T) {
	tb := index.Rational{Num: 1, Den: 90000}
	cues := []index.Cue{{Start: 90000, End: 180000, Text: "hello <world> & friends"}}
	doc := BuildSegment(cues, 0, 360000, tb)

	lines := strings.SplitN(doc, "\n", 3)
	if lines[0] != "WEBVTT" {
		t.Fatalf("expected WEBVTT header, got %q", lines[0])
	}
	re := regexp.MustCompile(`^X-TIMESTAMP-MAP=MPEGTS:\d+,LOCAL:00:00:00\.000$`)
	if !re.MatchString(lines[1]) {
		t.Fatalf("timestamp-map line malformed: %q", lines[1])
	}
	if !strings.Contains(doc, "hello &lt;world&gt; &amp; friends") {
		t.Fatalf("expected escaped cue text, got %q", doc)
	}
	if !strings.Contains(doc, "00:00:01.000 --> 00:00:02.000") {
		t.Fatalf("expected formatted cue timing, got %q", doc)
	}
}

func TestBuildSegmentExcludesCuesOutsideWindow(t *testing.T) {
	tb := index.Rational{Num: 1, Den: 90000}
	cues := []index.Cue{{Start: 1000000, End: 1100000, Text: "late"}}
	doc := BuildSegment(cues, 0, 90000, tb)
	if strings.Contains(doc, "late") {
		t.Fatalf("cue outside window should be excluded: %q", doc)
	}
}

func TestStripASSTags(t *testing.T) {
	got := StripASSTags(`{\b1}Bold{\b0} text\Nsecond line`)
	want := "Bold text\nsecond line"
	if got != want {
		t.Fatalf("StripASSTags = %q, want %q", got, want)
	}
}

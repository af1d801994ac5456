package playlist

import (
	"strings"
	"testing"

	"github.com/hlsvod/hlsvod/internal/audioplan"
	"github.com/hlsvod/hlsvod/internal/index"
)

func TestMasterSingleVariantForH264AAC(t *testing.T) {
	d := &index.Descriptor{
		VideoStreams: []index.VideoStreamInfo{{Index: 0, CodecTag: "h264", Width: 1920, Height: 1080, Bitrate: 4_000_000}},
	}
	variants := []audioplan.Variant{{SourceStreamIndex: 1, CodecTag: "aac", Language: "en", GroupID: "aac"}}

	m := Master(d, variants, "/test.mp4")

	if !strings.Contains(m, "#EXTM3U") {
		t.Fatal("missing #EXTM3U header")
	}
	if strings.Count(m, "#EXT-X-STREAM-INF") != 1 {
		t.Fatalf("expected exactly one EXT-X-STREAM-INF, got playlist:\n%s", m)
	}
	if !strings.Contains(m, `CODECS="avc1.64001f,mp4a.40.2"`) {
		t.Fatalf("expected avc1/mp4a codec string, got:\n%s", m)
	}
}

func TestVariantPlaylistStructure(t *testing.T) {
	d := &index.Descriptor{
		Segments: []index.Segment{
			{Sequence: 0, StartPTS: 0, EndPTS: 4 * 90000, DurationS: 4.0},
			{Sequence: 1, StartPTS: 4 * 90000, EndPTS: 8 * 90000, DurationS: 4.0},
		},
	}
	v := Variant(d, "video", 0, "1.init.mp4", "1.%d.m4s")

	if !strings.Contains(v, "#EXT-X-VERSION:7") {
		t.Fatal("missing version tag")
	}
	if !strings.Contains(v, "#EXT-X-PLAYLIST-TYPE:VOD") {
		t.Fatal("missing playlist-type tag")
	}
	if !strings.Contains(v, "#EXT-X-TARGETDURATION:4") {
		t.Fatalf("expected target duration 4, got:\n%s", v)
	}
	if !strings.Contains(v, `#EXT-X-MAP:URI="1.init.mp4"`) {
		t.Fatal("missing init map")
	}
	if strings.Count(v, "#EXTINF:") != 2 {
		t.Fatalf("expected 2 EXTINF entries, got:\n%s", v)
	}
	if !strings.HasSuffix(strings.TrimSpace(v), "#EXT-X-ENDLIST") {
		t.Fatal("missing ENDLIST terminator")
	}
}

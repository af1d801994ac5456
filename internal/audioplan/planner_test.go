package audioplan

import (
	"testing"

	"github.com/hlsvod/hlsvod/internal/index"
)

func descriptor(streams ...index.AudioStreamInfo) *index.Descriptor {
	return &index.Descriptor{AudioStreams: streams}
}

func TestPlanNoAcceptExposesEverything(t *testing.T) {
	d := descriptor(
		index.AudioStreamInfo{Index: 0, CodecTag: "ac3", Language: "en"},
		index.AudioStreamInfo{Index: 1, CodecTag: "opus", Language: "fr"},
	)
	variants := Plan(d, nil)
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(variants))
	}
	for _, v := range variants {
		if v.Transcode {
			t.Fatalf("unexpected transcode with no accept_codecs restriction")
		}
	}
}

func TestPlanAACOnlyTranscodesNonAAC(t *testing.T) {
	d := descriptor(index.AudioStreamInfo{Index: 0, CodecTag: "ac3", Language: "en"})
	variants := Plan(d, map[string]bool{"aac": true})
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(variants))
	}
	if !variants[0].Transcode || variants[0].CodecTag != "aac" {
		t.Fatalf("expected a transcode-to-aac variant, got %+v", variants[0])
	}
}

func TestPlanGroupDroppedWhenNoMatch(t *testing.T) {
	d := descriptor(index.AudioStreamInfo{Index: 0, CodecTag: "ac3", Language: "en"})
	variants := Plan(d, map[string]bool{"opus": true})
	if len(variants) != 0 {
		t.Fatalf("expected group to be dropped, got %+v", variants)
	}
}

func TestPlanAlreadyAACNeverTranscoded(t *testing.T) {
	d := descriptor(index.AudioStreamInfo{Index: 0, CodecTag: "aac", Language: "en"})
	variants := Plan(d, map[string]bool{"aac": true})
	if len(variants) != 1 || variants[0].Transcode {
		t.Fatalf("AAC source should be exposed as-is, got %+v", variants)
	}
}

func TestPlanBothAACAndAC3ExposedWhenBothAccepted(t *testing.T) {
	d := descriptor(
		index.AudioStreamInfo{Index: 0, CodecTag: "aac", Language: "en"},
		index.AudioStreamInfo{Index: 1, CodecTag: "ac3", Language: "en"},
	)
	variants := Plan(d, map[string]bool{"aac": true, "ac3": true})
	if len(variants) != 2 {
		t.Fatalf("expected both variants exposed, got %+v", variants)
	}
}

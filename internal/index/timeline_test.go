package index

import "testing"

func TestBuildTimelineNoGapsNoOverlaps(t *testing.T) {
	tb := Rational{Num: 1, Den: 90000}
	// Keyframes every 2s for 20s of content.
	var kfs []int64
	for i := int64(0); i < 10; i++ {
		kfs = append(kfs, i*2*90000)
	}
	segs := BuildTimeline(kfs, 20*90000, tb)
	if len(segs) == 0 {
		t.Fatal("expected segments")
	}
	for i, s := range segs {
		if s.Sequence != i {
			t.Fatalf("segment %d has sequence %d, want dense numbering", i, s.Sequence)
		}
		if i > 0 && segs[i-1].EndPTS != s.StartPTS {
			t.Fatalf("gap/overlap between segment %d and %d: %d != %d", i-1, i, segs[i-1].EndPTS, s.StartPTS)
		}
		if s.DurationS < minDurationSecs-0.01 && i != len(segs)-1 {
			t.Fatalf("segment %d duration %.2f below minimum (not last segment)", i, s.DurationS)
		}
		if s.DurationS > maxDurationSecs+0.01 {
			t.Fatalf("segment %d duration %.2f exceeds maximum", i, s.DurationS)
		}
	}
	last := segs[len(segs)-1]
	if last.EndPTS != 20*90000 {
		t.Fatalf("last segment end %d != total duration", last.EndPTS)
	}
}

func TestBuildTimelineKeepsUnsplittableLongGOP(t *testing.T) {
	tb := Rational{Num: 1, Den: 90000}
	// A single keyframe at 0, next at 10s: must split before the 6s mark,
	// but with no intermediate keyframe available it can only flush once
	// the sentinel is reached — verifies we never silently drop duration.
	kfs := []int64{0}
	segs := BuildTimeline(kfs, 10*90000, tb)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment when no intermediate keyframe exists to split on, got %d", len(segs))
	}
	if segs[0].EndPTS != 10*90000 {
		t.Fatalf("segment should cover full duration when unsplittable")
	}
}

func TestBuildTimelineSplitsAtIntermediateKeyframe(t *testing.T) {
	tb := Rational{Num: 1, Den: 90000}
	// groupStart=0, next keyframe at 1s (under target), the one after at
	// 7s would push the group to 7s (over the 6s cap) — must split at the
	// 1s keyframe instead of flushing a 7s segment.
	kfs := []int64{0, 1 * 90000, 7 * 90000}
	segs := BuildTimeline(kfs, 15*90000, tb)
	if len(segs) < 2 {
		t.Fatalf("expected the long GOP to be split, got %d segment(s): %+v", len(segs), segs)
	}
	if segs[0].EndPTS != 1*90000 {
		t.Fatalf("expected the first segment to end at the intermediate keyframe (1s), got EndPTS=%d", segs[0].EndPTS)
	}
	for _, s := range segs[:len(segs)-1] {
		if s.DurationS > maxDurationSecs+0.01 {
			t.Fatalf("non-final segment %+v exceeds the 6s cap", s)
		}
	}
}

func TestBuildTimelineEmpty(t *testing.T) {
	if segs := BuildTimeline(nil, 1000, Rational{1, 90000}); segs != nil {
		t.Fatalf("expected nil for no keyframes, got %v", segs)
	}
}

package index

// Keyframe is one video keyframe's presentation timestamp, in the video
// stream's own timebase ticks, as walked by the Media-IO adapter.
type Keyframe struct {
	PTS int64
}

const (
	targetDurationSecs = 4.0
	minDurationSecs    = 3.0
	maxDurationSecs    = 6.0
)

// BuildTimeline greedily groups consecutive GOPs (keyframe to next keyframe)
// into segments until the accumulated duration first reaches
// targetDurationSecs, splitting early if a group would exceed
// maxDurationSecs — the algorithm from spec §4.1, grounded on the same
// greedy-grouping shape the teacher's segment buffer uses for its own
// sliding-window eviction (internal/relay/segment_buffer.go), applied here
// to keyframe timestamps instead of already-muxed segments.
//
// keyframePTS must be sorted ascending. durationTicks (the stream's end PTS)
// serves as the final sentinel so the last GOP's length can be computed;
// keyframePTS must NOT include that sentinel as a keyframe start itself.
func BuildTimeline(keyframePTS []int64, durationTicks int64, tb Rational) []Segment {
	if len(keyframePTS) == 0 {
		return nil
	}

	segments := make([]Segment, 0, len(keyframePTS))
	seq := 0
	groupStart := keyframePTS[0]
	groupStartIdx := 0

	flush := func(endPTS int64) {
		dur := tb.Seconds(endPTS - groupStart)
		segments = append(segments, Segment{
			Sequence:   seq,
			StartPTS:   groupStart,
			EndPTS:     endPTS,
			DurationS:  dur,
			IsKeyframe: true,
		})
		seq++
	}

	for i := groupStartIdx + 1; i <= len(keyframePTS); i++ {
		last := i == len(keyframePTS)
		var pts int64
		if last {
			pts = durationTicks
		} else {
			pts = keyframePTS[i]
		}

		elapsed := tb.Seconds(pts - groupStart)

		if !last && elapsed > maxDurationSecs {
			// This keyframe would push the group past the 6s cap: split
			// at the latest keyframe before it (i-1) instead, then
			// re-test the same pts against the shorter group.
			splitPTS := keyframePTS[i-1]
			if splitPTS > groupStart {
				flush(splitPTS)
				groupStart = splitPTS
				i--
				continue
			}
			// No earlier keyframe inside this GOP to split at — the
			// group can only grow past the cap here; fall through to
			// the target check below, which will flush at this pts.
		}

		if last || elapsed >= targetDurationSecs {
			flush(pts)
			groupStart = pts
			continue
		}
	}

	return segments
}

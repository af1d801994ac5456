package fmp4

import (
	"bytes"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
)

// Sample is one packet-copied or encoded access unit ready to be muxed into
// a media segment.
type Sample struct {
	Payload    []byte
	DurationTk uint32 // in the track's timebase
	IsKeyframe bool
}

// TrackKind distinguishes how InitSegment names its single track.
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

// InitSegment builds a one-track ftyp+moov+mvex/trex init segment (spec
// §4.3: "only the single target track is included"), delegating box
// construction to mediacommon/pkg/formats/fmp4 the way the teacher's own
// relay muxer does (internal/relay/fmp4_adapter.go), then returns the raw
// bytes unmodified — init segments carry no timestamps, so they need no
// patching.
func InitSegment(trackID int, timescale uint32, codec fmp4.Codec) ([]byte, error) {
	init := &fmp4.Init{
		Tracks: []*fmp4.InitTrack{
			{
				ID:        trackID,
				TimeScale: timescale,
				Codec:     codec,
			},
		},
	}

	var buf bytes.Buffer
	if err := init.Marshal(&buf); err != nil {
		return nil, fmt.Errorf("fmp4: marshal init: %w", err)
	}
	return buf.Bytes(), nil
}

// MediaSegment builds one moof+mdat media segment from packet-copied or
// encoded samples, then strips any leading ftyp/moov the underlying library
// emits and patches mfhd/tfdt for HLS sequence continuity (spec §4.3).
//
// baseTimeTicks is segment.start_pts converted to the track's own timebase;
// sequence is the HLS media-sequence number for this segment.
func MediaSegment(trackID int, sequence uint32, baseTimeTicks int64, samples []Sample) ([]byte, error) {
	partSamples := make([]*fmp4.Sample, 0, len(samples))
	for _, s := range samples {
		partSamples = append(partSamples, &fmp4.Sample{
			IsNonSyncSample: !s.IsKeyframe,
			Payload:         s.Payload,
			Duration:        s.DurationTk,
		})
	}

	part := &fmp4.Part{
		SequenceNumber: int(sequence),
		Tracks: []*fmp4.PartTrack{
			{
				ID:       trackID,
				BaseTime: 0, // the library always starts a Part's base time at 0; we patch tfdt below
				Samples:  partSamples,
			},
		},
	}

	var buf bytes.Buffer
	if err := part.Marshal(&buf); err != nil {
		return nil, fmt.Errorf("fmp4: marshal part: %w", err)
	}

	stripped, err := stripLeadingFtypMoov(buf.Bytes())
	if err != nil {
		return nil, err
	}

	patched, err := PatchSegment(stripped, sequence, baseTimeTicks)
	if err != nil {
		return nil, fmt.Errorf("fmp4: patch segment: %w", err)
	}
	return patched, nil
}

// stripLeadingFtypMoov removes any ftyp/moov boxes mediacommon's Part
// marshaler may have emitted before the moof+mdat pair, per spec §4.3:
// "any leading ftyp/moov emitted by the underlying muxer MUST be
// stripped" — treating the library as an opaque byte producer whose
// container-level framing we don't rely on.
func stripLeadingFtypMoov(data []byte) ([]byte, error) {
	offset := 0
	for offset < len(data) {
		hdr, err := peekBoxHeader(data[offset:])
		if err != nil {
			return nil, err
		}
		if hdr.boxType == "moof" || hdr.boxType == "mdat" {
			return data[offset:], nil
		}
		if int(hdr.size) == 0 || int(hdr.size) > len(data)-offset {
			return nil, fmt.Errorf("fmp4: box %q overruns buffer while stripping leading boxes", hdr.boxType)
		}
		offset += int(hdr.size)
	}
	return data, nil
}

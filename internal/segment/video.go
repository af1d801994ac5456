// Package segment implements the packet-copy video and audio segment
// generators (spec §4.4, §4.5): open the container, isolate the target
// stream, copy packets within the segment's PTS window into the muxer, and
// return the patched media segment.
package segment

import (
	"errors"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/hlsvod/hlsvod/internal/index"
	"github.com/hlsvod/hlsvod/internal/media"
	fmp4mux "github.com/hlsvod/hlsvod/internal/fmp4"
)

// BuildVideoInit renders the one-track video init segment.
func BuildVideoInit(d *index.Descriptor, track int) ([]byte, error) {
	v, ok := d.VideoStream(track)
	if !ok {
		return nil, fmt.Errorf("segment: no video track %d", track)
	}
	codec, err := videoCodec(v)
	if err != nil {
		return nil, err
	}
	return fmp4mux.InitSegment(track, uint32(v.Timebase.Den), codec)
}

// BuildVideoMedia renders one video media segment by packet copy.
func BuildVideoMedia(d *index.Descriptor, track, sequence int) ([]byte, error) {
	v, ok := d.VideoStream(track)
	if !ok {
		return nil, fmt.Errorf("segment: no video track %d", track)
	}
	seg, ok := d.SegmentAt(sequence)
	if !ok {
		return nil, fmt.Errorf("segment: no segment %d", sequence)
	}

	c, err := media.Open(d.SourcePath)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	c.DisableAllExcept(track)
	if err := c.SeekToPTS(track, seg.StartPTS); err != nil {
		return nil, err
	}

	var samples []fmp4mux.Sample
	for {
		pkt, err := c.ReadPacket()
		if errors.Is(err, media.ErrEOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if pkt.StreamIndex != track {
			continue
		}
		if pkt.PTS < seg.StartPTS {
			continue
		}
		if pkt.PTS >= seg.EndPTS {
			break
		}
		samples = append(samples, fmp4mux.Sample{
			Payload:    pkt.Data,
			DurationTk: uint32(pkt.DurationTk),
			IsKeyframe: pkt.IsKeyframe,
		})
	}

	return fmp4mux.MediaSegment(track, uint32(sequence), seg.StartPTS, samples)
}

func videoCodec(v index.VideoStreamInfo) (fmp4.Codec, error) {
	switch v.CodecTag {
	case "h264":
		sps, pps, err := avcDecoderConfig(v.ExtraData)
		if err != nil {
			return nil, fmt.Errorf("segment: h264 parameter sets: %w", err)
		}
		return &fmp4.CodecH264{SPS: sps, PPS: pps}, nil
	case "h265":
		vps, sps, pps, err := hevcDecoderConfig(v.ExtraData)
		if err != nil {
			return nil, fmt.Errorf("segment: h265 parameter sets: %w", err)
		}
		return &fmp4.CodecH265{VPS: vps, SPS: sps, PPS: pps}, nil
	case "vp9":
		return &fmp4.CodecVP9{Width: v.Width, Height: v.Height}, nil
	case "av1":
		return &fmp4.CodecAV1{}, nil
	default:
		return nil, fmt.Errorf("segment: unsupported video codec %q", v.CodecTag)
	}
}

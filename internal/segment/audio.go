package segment

import (
	"errors"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	fmp4mux "github.com/hlsvod/hlsvod/internal/fmp4"
	"github.com/hlsvod/hlsvod/internal/index"
	"github.com/hlsvod/hlsvod/internal/media"
	"github.com/hlsvod/hlsvod/internal/transcode"
)

// BuildAudioTranscodedInit renders the init segment for a track the audio
// planner decided to expose as AAC even though the source isn't (spec §4.2
// fallback rule). targetSampleRate comes from config (spec §6 --audio-sample-rate).
func BuildAudioTranscodedInit(d *index.Descriptor, track, targetSampleRate int) ([]byte, error) {
	a, ok := d.AudioStream(track)
	if !ok {
		return nil, fmt.Errorf("segment: no audio track %d", track)
	}
	codec := &fmp4.CodecMPEG4Audio{Config: mpeg4audio.Config{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   targetSampleRate,
		ChannelCount: a.Channels,
	}}
	return fmp4mux.InitSegment(track, uint32(targetSampleRate), codec)
}

// BuildAudioMediaTranscode renders one audio media segment by decoding the
// source packets in the segment window and re-encoding them to AAC-LC
// (spec §4.6: packet-copy is only valid when the source codec is already
// HLS-compatible; everything else is decoded, resampled to 48kHz FLTP, and
// encoded to AAC).
func BuildAudioMediaTranscode(d *index.Descriptor, track, sequence int, sess *transcode.Session) ([]byte, error) {
	a, ok := d.AudioStream(track)
	if !ok {
		return nil, fmt.Errorf("segment: no audio track %d", track)
	}
	seg, ok := d.SegmentAt(sequence)
	if !ok {
		return nil, fmt.Errorf("segment: no segment %d", sequence)
	}

	startSecs := d.VideoTimebase.Seconds(seg.StartPTS)
	endSecs := d.VideoTimebase.Seconds(seg.EndPTS)
	audioStart := int64(startSecs * float64(a.Timebase.Den) / float64(nonZero(a.Timebase.Num)))
	audioEnd := int64(endSecs * float64(a.Timebase.Den) / float64(nonZero(a.Timebase.Num)))

	c, err := media.Open(d.SourcePath)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	c.DisableAllExcept(track)
	if err := c.SeekToPTS(track, audioStart); err != nil {
		return nil, err
	}

	var packets [][]byte
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
		if pkt.PTS < audioStart {
			continue
		}
		if pkt.PTS >= audioEnd {
			break
		}
		packets = append(packets, pkt.Data)
	}

	frames, err := sess.TranscodePackets(packets)
	if err != nil {
		return nil, err
	}
	samples := transcode.ToSamples(frames)

	rescaled := int64(startSecs * float64(sess.TargetConfig().TargetSampleRate))
	return fmp4mux.MediaSegment(track, uint32(sequence), rescaled, samples)
}

// BuildAudioInit renders the one-track audio init segment for a
// packet-copied (not transcoded) source stream.
func BuildAudioInit(d *index.Descriptor, track int) ([]byte, error) {
	a, ok := d.AudioStream(track)
	if !ok {
		return nil, fmt.Errorf("segment: no audio track %d", track)
	}
	codec, err := audioCodec(a)
	if err != nil {
		return nil, err
	}
	return fmp4mux.InitSegment(track, uint32(a.Timebase.Den), codec)
}

// BuildAudioMediaCopy renders one audio media segment by packet copy,
// mapping the segment's video-timebase window onto the audio stream's own
// timebase (spec §4.5: "Packet PTS is mapped from audio timebase to
// segment-window using the video timebase stored on the descriptor").
func BuildAudioMediaCopy(d *index.Descriptor, track, sequence int) ([]byte, error) {
	a, ok := d.AudioStream(track)
	if !ok {
		return nil, fmt.Errorf("segment: no audio track %d", track)
	}
	seg, ok := d.SegmentAt(sequence)
	if !ok {
		return nil, fmt.Errorf("segment: no segment %d", sequence)
	}

	startSecs := d.VideoTimebase.Seconds(seg.StartPTS)
	endSecs := d.VideoTimebase.Seconds(seg.EndPTS)
	audioStart := int64(startSecs * float64(a.Timebase.Den) / float64(nonZero(a.Timebase.Num)))
	audioEnd := int64(endSecs * float64(a.Timebase.Den) / float64(nonZero(a.Timebase.Num)))

	c, err := media.Open(d.SourcePath)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	c.DisableAllExcept(track)
	if err := c.SeekToPTS(track, audioStart); err != nil {
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
		if pkt.PTS < audioStart {
			continue
		}
		if pkt.PTS >= audioEnd {
			break
		}
		samples = append(samples, fmp4mux.Sample{
			Payload:    pkt.Data,
			DurationTk: uint32(pkt.DurationTk),
			IsKeyframe: true, // audio frames are all sync samples
		})
	}

	return fmp4mux.MediaSegment(track, uint32(sequence), audioStart, samples)
}

func audioCodec(a index.AudioStreamInfo) (fmp4.Codec, error) {
	switch a.CodecTag {
	case "aac":
		return &fmp4.CodecMPEG4Audio{Config: defaultMPEG4AudioConfig(a)}, nil
	case "ac3":
		return &fmp4.CodecAC3{SampleRate: a.SampleRate, ChannelCount: a.Channels}, nil
	case "opus":
		return &fmp4.CodecOpus{SampleRate: a.SampleRate, ChannelCount: a.Channels}, nil
	case "mp3":
		return &fmp4.CodecMPEG1Audio{SampleRate: a.SampleRate, ChannelCount: a.Channels}, nil
	default:
		return nil, fmt.Errorf("segment: unsupported audio codec %q", a.CodecTag)
	}
}

func defaultMPEG4AudioConfig(a index.AudioStreamInfo) mpeg4audio.Config {
	return mpeg4audio.Config{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   a.SampleRate,
		ChannelCount: a.Channels,
	}
}

func nonZero(v int64) int64 {
	if v == 0 {
		return 1
	}
	return v
}

// Package media is the Media-IO adapter: it opens a container file and
// exposes a pull-based packet stream, per-stream metadata, and timestamp
// seeking — entirely via an in-process library call, so no external
// media-tool process is ever spawned (spec §1, §2). It has no fMP4 sink;
// fMP4 boxes are built by internal/fmp4.
//
// All work here crosses into github.com/asticode/go-astiav, a cgo binding
// over libavformat/libavcodec; calls that can fail run through boundary.go,
// which turns a panic from the C side into a returned error. Open wraps its
// failures in *apperr.Error; seek and read errors are returned as they come.
package media

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/hlsvod/hlsvod/internal/apperr"
	"github.com/hlsvod/hlsvod/internal/index"
)

// Container wraps one open demuxing session for a single source file.
// Not safe for concurrent use by multiple goroutines; callers open one
// Container per concurrent operation (index, segment build, transcode).
type Container struct {
	path       string
	formatCtx  *astiav.FormatContext
	streams    []*astiav.Stream
}

// Open demuxes the container header and stream table. Returns
// apperr.KindNotFound / KindUnsupported on failure per spec §4.1's
// IndexError{NotFound, Unreadable} cases.
func Open(path string) (*Container, error) {
	formatCtx := astiav.AllocFormatContext()
	if formatCtx == nil {
		return nil, apperr.New(apperr.KindInternal, "allocate format context failed")
	}

	if err := boundary(func() error {
		return formatCtx.OpenInput(path, nil, nil)
	}); err != nil {
		formatCtx.Free()
		return nil, apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("open %s", path), err)
	}

	if err := boundary(formatCtx.FindStreamInfo); err != nil {
		formatCtx.CloseInput()
		return nil, apperr.Wrap(apperr.KindUnsupported, "probe stream info", err)
	}

	return &Container{
		path:      path,
		formatCtx: formatCtx,
		streams:   formatCtx.Streams(),
	}, nil
}

// Close releases the underlying format context.
func (c *Container) Close() {
	if c.formatCtx != nil {
		c.formatCtx.CloseInput()
		c.formatCtx.Free()
		c.formatCtx = nil
	}
}

// DurationSeconds returns the container-reported duration.
func (c *Container) DurationSeconds() float64 {
	dur := c.formatCtx.Duration()
	if dur <= 0 {
		return 0
	}
	return float64(dur) / float64(astiav.TimeBase)
}

// StreamMeta is the subset of ffmpeg stream metadata the indexer needs.
type StreamMeta struct {
	Index     int
	MediaType astiav.MediaType
	CodecTag  string
	Timebase  index.Rational
	Width     int
	Height    int
	FPS       float64
	SampleRate int
	Channels   int
	Language   string
	Bitrate    int64
	ExtraData  []byte
}

// IsVideo reports whether this stream carries video.
func (m StreamMeta) IsVideo() bool { return m.MediaType == astiav.MediaTypeVideo }

// IsAudio reports whether this stream carries audio.
func (m StreamMeta) IsAudio() bool { return m.MediaType == astiav.MediaTypeAudio }

// IsSubtitle reports whether this stream carries subtitles.
func (m StreamMeta) IsSubtitle() bool { return m.MediaType == astiav.MediaTypeSubtitle }

// Streams returns per-stream metadata for every stream in the container.
func (c *Container) Streams() []StreamMeta {
	out := make([]StreamMeta, 0, len(c.streams))
	for _, s := range c.streams {
		params := s.CodecParameters()
		tb := s.TimeBase()
		meta := StreamMeta{
			Index:      s.Index(),
			MediaType:  params.MediaType(),
			CodecTag:   normalizeCodecID(params.CodecID()),
			Timebase:   index.Rational{Num: int64(tb.Num()), Den: int64(tb.Den())},
			Bitrate:    params.BitRate(),
			ExtraData:  params.ExtraData(),
		}
		if params.MediaType() == astiav.MediaTypeVideo {
			meta.Width = params.Width()
			meta.Height = params.Height()
			meta.FPS = streamFrameRate(s)
		}
		if params.MediaType() == astiav.MediaTypeAudio {
			meta.SampleRate = params.SampleRate()
			meta.Channels = params.Channels()
		}
		meta.Language = streamLanguage(s)
		out = append(out, meta)
	}
	return out
}

func streamFrameRate(s *astiav.Stream) float64 {
	fr := s.AvgFrameRate()
	if fr.Den() == 0 {
		return 0
	}
	return float64(fr.Num()) / float64(fr.Den())
}

func streamLanguage(s *astiav.Stream) string {
	if dict := s.Metadata(); dict != nil {
		if entry := dict.Get("language", nil, 0); entry != nil {
			return entry.Value()
		}
	}
	return ""
}

// normalizeCodecID maps ffmpeg's internal codec ID to the short tag
// vocabulary used throughout this service ("h264", "aac", ...), grounded on
// the teacher's internal/codec registry of short codec names.
func normalizeCodecID(id astiav.CodecID) string {
	switch id {
	case astiav.CodecIDH264:
		return "h264"
	case astiav.CodecIDHevc:
		return "h265"
	case astiav.CodecIDVp9:
		return "vp9"
	case astiav.CodecIDAv1:
		return "av1"
	case astiav.CodecIDAac:
		return "aac"
	case astiav.CodecIDAc3:
		return "ac3"
	case astiav.CodecIDEac3:
		return "eac3"
	case astiav.CodecIDOpus:
		return "opus"
	case astiav.CodecIDMp3:
		return "mp3"
	case astiav.CodecIDSubrip:
		return "srt"
	case astiav.CodecIDAss:
		return "ass"
	case astiav.CodecIDMovText:
		return "movtext"
	case astiav.CodecIDHdmvPgsSubtitle, astiav.CodecIDDvbSubtitle, astiav.CodecIDXsub:
		return "bitmap"
	default:
		return id.String()
	}
}

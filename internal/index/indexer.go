package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/hlsvod/hlsvod/internal/apperr"
	"github.com/hlsvod/hlsvod/internal/media"
	"github.com/hlsvod/hlsvod/internal/subtitle"
)

// ScanBudget bounds how many packets ScanKeyframes reads before an
// un-indexed (typical MKV) file indexing attempt returns IndexTimeout.
const ScanBudget = 2_000_000

// Index implements the indexer contract (spec §4.1):
// index(path) -> Descriptor | IndexError{NotFound, Unreadable, NoPlayableStreams, Timeout}.
func Index(ctx context.Context, path string) (*Descriptor, error) {
	c, err := media.Open(path)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	streams := c.Streams()
	d := NewDescriptor()
	d.ID = descriptorID(path)
	d.SourcePath = path
	d.Duration = c.DurationSeconds()

	var videoIdx = -1
	for _, s := range streams {
		switch {
		case s.IsVideo():
			d.VideoStreams = append(d.VideoStreams, VideoStreamInfo{
				Index:     s.Index,
				CodecTag:  s.CodecTag,
				Bitrate:   s.Bitrate,
				Width:     s.Width,
				Height:    s.Height,
				FPS:       s.FPS,
				Timebase:  s.Timebase,
				ExtraData: s.ExtraData,
			})
			if videoIdx == -1 {
				videoIdx = s.Index
				d.VideoTimebase = s.Timebase
			}
		case s.IsAudio():
			d.AudioStreams = append(d.AudioStreams, AudioStreamInfo{
				Index:      s.Index,
				CodecTag:   s.CodecTag,
				Bitrate:    s.Bitrate,
				SampleRate: s.SampleRate,
				Channels:   s.Channels,
				Language:   s.Language,
				Timebase:   s.Timebase,
				ExtraData:  s.ExtraData,
			})
		case s.IsSubtitle():
			d.SubtitleStreams = append(d.SubtitleStreams, SubtitleStreamInfo{
				Index:    s.Index,
				Format:   subtitleFormat(s.CodecTag),
				Language: s.Language,
				Timebase: s.Timebase,
			})
		}
	}

	if videoIdx == -1 {
		return nil, apperr.New(apperr.KindUnsupported, "no playable video stream")
	}
	if len(d.VideoStreams) == 0 && len(d.AudioStreams) == 0 {
		return nil, apperr.New(apperr.KindUnsupported, "no playable streams")
	}

	keyframes, durationTicks, err := scanWithBudget(ctx, c, videoIdx)
	if err != nil {
		return nil, err
	}
	if durationTicks == 0 && d.Duration > 0 {
		durationTicks = int64(d.Duration * float64(d.VideoTimebase.Den) / float64(nonZero(d.VideoTimebase.Num)))
	}
	d.Segments = BuildTimeline(keyframes, durationTicks, d.VideoTimebase)

	for _, st := range d.SubtitleStreams {
		if subtitle.IsBitmapFormat(st.Format) {
			continue
		}
		cues, err := extractCues(c, st, d.VideoTimebase)
		if err != nil {
			continue // a single bad subtitle stream must not fail the whole index
		}
		d.SubtitleCues[st.Index] = cues
	}

	return d, nil
}

func scanWithBudget(ctx context.Context, c *media.Container, videoIdx int) ([]int64, int64, error) {
	type result struct {
		kfs      []int64
		duration int64
		err      error
	}
	done := make(chan result, 1)
	go func() {
		kfs, dur, err := c.ScanKeyframes(videoIdx, ScanBudget)
		done <- result{kfs, dur, err}
	}()

	select {
	case <-ctx.Done():
		return nil, 0, apperr.Wrap(apperr.KindIndexTimeout, "index scan timed out", ctx.Err())
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return nil, 0, apperr.Wrap(apperr.KindIndexTimeout, "index scan timed out", r.err)
			}
			return nil, 0, apperr.Wrap(apperr.KindInternal, "scan keyframes", r.err)
		}
		return r.kfs, r.duration, nil
	}
}

// extractCues fully reads a text-subtitle stream's packets once, per spec
// §4.1 ("Subtitle streams whose codec is non-bitmap are fully read during
// indexing"). It re-seeks and re-reads the same *media.Container the video
// keyframe scan already opened, rather than interleaving with it, since the
// two scans discard different stream sets.
//
// Packet PTS/duration arrive in the subtitle stream's own timebase, which
// for MP4 movtext in particular is rarely the video track's timebase; every
// cue is converted to videoTimebase here so BuildSegment's window
// intersection and HH:MM:SS.mmm formatting (both "in video timebase" per
// spec §4.7) operate on consistent units.
func extractCues(c *media.Container, st SubtitleStreamInfo, videoTimebase Rational) ([]Cue, error) {
	c.DisableAllExcept(st.Index)
	if err := c.SeekToPTS(st.Index, 0); err != nil {
		return nil, err
	}

	var cues []Cue
	for {
		pkt, err := c.ReadPacket()
		if errors.Is(err, media.ErrEOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if pkt.StreamIndex != st.Index {
			continue
		}
		start := st.Timebase.ConvertTicks(pkt.PTS, videoTimebase)
		end := st.Timebase.ConvertTicks(pkt.PTS+pkt.DurationTk, videoTimebase)
		cue := subtitle.BuildCue(st.Format, start, end, string(pkt.Data))
		cues = append(cues, Cue{Start: cue.Start, End: cue.End, Text: cue.Text})
	}
	return cues, nil
}

func subtitleFormat(codecTag string) SubtitleFormat {
	switch codecTag {
	case "srt":
		return SubtitleSRT
	case "ass":
		return SubtitleASS
	case "movtext":
		return SubtitleMOVTEXT
	case "webvtt":
		return SubtitleWEBVTT
	case "bitmap":
		return SubtitleBitmap
	default:
		return SubtitleBitmap // unknown subtitle codecs are treated conservatively as non-playlistable
	}
}

func descriptorID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:16]
}

func nonZero(v int64) int64 {
	if v == 0 {
		return 1
	}
	return v
}

// IndexTimeout is a 30-second default scan deadline. Index does not apply
// it: the scan is bounded by ScanBudget and by whatever deadline the
// caller's ctx carries.
const IndexTimeout = 30 * time.Second

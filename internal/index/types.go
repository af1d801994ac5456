// Package index turns a container file into an immutable timeline of
// keyframe-aligned segments, classified stream metadata, and pre-extracted
// subtitle cues — the "Indexer" component.
package index

import (
	"sync/atomic"
	"time"
)

// Rational mirrors an ISO-BMFF/AV timebase: num/den seconds per tick.
type Rational struct {
	Num int64
	Den int64
}

// Seconds converts a tick count in this timebase to seconds.
func (r Rational) Seconds(ticks int64) float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(ticks) * float64(r.Num) / float64(r.Den)
}

// ConvertTicks rescales a tick count from this timebase into to's
// timebase, via seconds — used to bring a subtitle stream's own PTS into
// the video timebase every other consumer of Cue assumes (spec §4.7: cue
// windows and timestamps are both expressed "in video timebase").
func (r Rational) ConvertTicks(ticks int64, to Rational) int64 {
	if r.Den == 0 || to.Num == 0 {
		return ticks
	}
	return int64(float64(ticks) * float64(r.Num) * float64(to.Den) / (float64(r.Den) * float64(to.Num)))
}

// SubtitleFormat tags the source encoding of a subtitle stream.
type SubtitleFormat string

const (
	SubtitleSRT     SubtitleFormat = "SRT"
	SubtitleASS     SubtitleFormat = "ASS"
	SubtitleMOVTEXT SubtitleFormat = "MOVTEXT"
	SubtitleWEBVTT  SubtitleFormat = "WEBVTT"
	SubtitleBitmap  SubtitleFormat = "BITMAP" // PGS/DVB/XSUB — excluded from playlists
)

// VideoStreamInfo describes one demuxed video stream.
type VideoStreamInfo struct {
	Index      int
	CodecTag   string // "h264", "h265", "vp9", "av1"
	Bitrate    int64
	Width      int
	Height     int
	FPS        float64
	Timebase   Rational
	ExtraData  []byte // SPS/VPS/etc, source for RFC 6381 codec strings
}

// AudioStreamInfo describes one demuxed audio stream.
type AudioStreamInfo struct {
	Index             int
	CodecTag          string // "aac", "ac3", "eac3", "opus", "mp3"
	Bitrate           int64
	SampleRate        int
	Channels          int
	Language          string
	Timebase          Rational
	ExtraData         []byte
	Transcoded        bool
	SourceStreamIndex int // valid iff Transcoded
}

// SubtitleStreamInfo describes one demuxed subtitle stream.
type SubtitleStreamInfo struct {
	Index    int
	Format   SubtitleFormat
	Language string
	Timebase Rational // the stream's own timebase, for converting extracted cue PTS into video timebase
}

// Cue is one fully materialized subtitle entry, in video-timebase ticks.
type Cue struct {
	Start int64
	End   int64
	Text  string
}

// Segment is one entry of the master timeline.
type Segment struct {
	Sequence   int
	StartPTS   int64
	EndPTS     int64
	DurationS  float64
	IsKeyframe bool
}

// Descriptor is the immutable, reference-shared result of indexing one file.
type Descriptor struct {
	ID         string
	SourcePath string
	Duration   float64

	VideoStreams    []VideoStreamInfo
	AudioStreams    []AudioStreamInfo
	SubtitleStreams []SubtitleStreamInfo

	Segments      []Segment
	VideoTimebase Rational

	// SubtitleCues is indexed by subtitle stream index (the SubtitleStreamInfo.Index).
	SubtitleCues map[int][]Cue

	lastAccessed atomic.Int64 // unix nanos
}

// NewDescriptor wires lastAccessed to now; call after filling the other fields.
func NewDescriptor() *Descriptor {
	d := &Descriptor{SubtitleCues: make(map[int][]Cue)}
	d.Touch()
	return d
}

// Touch records an access for idle-eviction purposes.
func (d *Descriptor) Touch() {
	d.lastAccessed.Store(time.Now().UnixNano())
}

// LastAccessed returns the last Touch time.
func (d *Descriptor) LastAccessed() time.Time {
	return time.Unix(0, d.lastAccessed.Load())
}

// IdleFor reports how long the descriptor has gone untouched.
func (d *Descriptor) IdleFor() time.Duration {
	return time.Since(d.LastAccessed())
}

// VideoStream returns the video stream at the given track index, if any.
func (d *Descriptor) VideoStream(track int) (VideoStreamInfo, bool) {
	for _, v := range d.VideoStreams {
		if v.Index == track {
			return v, true
		}
	}
	return VideoStreamInfo{}, false
}

// AudioStream returns the audio stream at the given track index, if any.
func (d *Descriptor) AudioStream(track int) (AudioStreamInfo, bool) {
	for _, a := range d.AudioStreams {
		if a.Index == track {
			return a, true
		}
	}
	return AudioStreamInfo{}, false
}

// SubtitleStream returns the subtitle stream at the given track index, if any.
func (d *Descriptor) SubtitleStream(track int) (SubtitleStreamInfo, bool) {
	for _, s := range d.SubtitleStreams {
		if s.Index == track {
			return s, true
		}
	}
	return SubtitleStreamInfo{}, false
}

// SegmentAt returns the segment with the given sequence number.
func (d *Descriptor) SegmentAt(sequence int) (Segment, bool) {
	if sequence < 0 || sequence >= len(d.Segments) {
		return Segment{}, false
	}
	return d.Segments[sequence], true
}

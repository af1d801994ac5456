// Package transcode implements the audio transcode path (spec §4.6):
// decode source audio, resample to 48 kHz FLTP, encode to AAC-LC, rechunk
// samples that don't divide evenly into AAC's 1024-sample frame.
package transcode

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/hlsvod/hlsvod/internal/apperr"
)

const aacFrameSize = 1024

// Session owns one decoder+resampler+encoder chain, reused across every
// segment of one (source file, audio track) pair via SessionPool (spec §4.6:
// "reuse the session across a stream's segments and record the init PTS
// offset") so resampler history carries correctly between consecutive
// segments and the AAC encoder's algorithmic pre-roll is only ever paid once.
type Session struct {
	mu sync.Mutex

	decCtx    *astiav.CodecContext
	resampler *astiav.SoftwareResampleContext
	encCtx    *astiav.CodecContext

	sampleRate int
	bitrate    int
	channels   int

	carry        []float32 // leftover resampled frames smaller than aacFrameSize
	framesToDrop int        // encoded AAC frames still to clip for encoder pre-roll
	cfg          Config
}

// TargetConfig returns the Config this session was opened with, so callers
// building init segments know the encoder's sample rate without re-deriving it.
func (s *Session) TargetConfig() Config { return s.cfg }

// Config configures a transcode Session (spec §6: --aac-bitrate,
// --audio-sample-rate).
type Config struct {
	SourceCodecTag string
	SourceExtraData []byte
	SourceSampleRate int
	SourceChannels   int
	TargetSampleRate int
	AACBitrate       int
}

// NewSession opens a decoder for the source codec, a resampler targeting
// 48 kHz FLTP, and an AAC-LC encoder at the configured bitrate.
func NewSession(cfg Config) (*Session, error) {
	s := &Session{
		sampleRate: cfg.TargetSampleRate,
		bitrate:    cfg.AACBitrate,
		channels:   cfg.SourceChannels,
		cfg:        cfg,
		// FFmpeg's native AAC encoder has a fixed one-frame (1024-sample)
		// MDCT algorithmic delay: the first encoded frame is priming
		// silence, not program audio, and must be dropped exactly once
		// per session, not once per segment.
		framesToDrop: 1,
	}

	decCodec := astiav.FindDecoderByID(codecIDForTag(cfg.SourceCodecTag))
	if decCodec == nil {
		return nil, apperr.New(apperr.KindUnsupported, fmt.Sprintf("no decoder for codec %q", cfg.SourceCodecTag))
	}
	decCtx := astiav.AllocCodecContext(decCodec)
	if decCtx == nil {
		return nil, apperr.New(apperr.KindInternal, "allocate decoder context")
	}
	if err := boundary(func() error { return decCtx.Open(decCodec, nil) }); err != nil {
		return nil, apperr.Wrap(apperr.KindTranscodeFail, "open decoder", err)
	}
	s.decCtx = decCtx

	encCodec := astiav.FindEncoderByID(astiav.CodecIDAac)
	if encCodec == nil {
		return nil, apperr.New(apperr.KindInternal, "no AAC encoder available")
	}
	encCtx := astiav.AllocCodecContext(encCodec)
	if encCtx == nil {
		return nil, apperr.New(apperr.KindInternal, "allocate encoder context")
	}
	encCtx.SetSampleRate(cfg.TargetSampleRate)
	encCtx.SetChannels(cfg.SourceChannels)
	encCtx.SetBitRate(int64(cfg.AACBitrate))
	encCtx.SetSampleFormat(astiav.SampleFormatFltp)
	if err := boundary(func() error { return encCtx.Open(encCodec, nil) }); err != nil {
		return nil, apperr.Wrap(apperr.KindTranscodeFail, "open AAC encoder", err)
	}
	s.encCtx = encCtx

	resampler := astiav.AllocSoftwareResampleContext()
	if resampler == nil {
		return nil, apperr.New(apperr.KindInternal, "allocate resampler")
	}
	s.resampler = resampler

	return s, nil
}

// Close releases the session's decoder/encoder/resampler contexts.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decCtx != nil {
		s.decCtx.Free()
	}
	if s.encCtx != nil {
		s.encCtx.Free()
	}
	if s.resampler != nil {
		s.resampler.Free()
	}
}

// sessionKey identifies a session's (source file, audio track) pair.
type sessionKey struct {
	sourcePath string
	track      int
}

// SessionPool hands out one long-lived Session per (sourcePath, track),
// keyed the same way the registry keys Descriptors, so a stream's segments
// share encoder/resampler state instead of each paying AAC pre-roll
// (spec §4.6; DESIGN.md's "reuse keyed by (sourcePath, audioStreamIndex)").
// Sessions are released via CloseSource, wired to the registry's eviction
// hook so a session never outlives the Descriptor it was opened against.
type SessionPool struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

// NewSessionPool returns an empty pool.
func NewSessionPool() *SessionPool {
	return &SessionPool{sessions: make(map[sessionKey]*Session)}
}

// Get returns the existing session for (sourcePath, track) if one is open,
// opening a new one with cfg otherwise.
func (p *SessionPool) Get(sourcePath string, track int, cfg Config) (*Session, error) {
	key := sessionKey{sourcePath: sourcePath, track: track}

	p.mu.Lock()
	if s, ok := p.sessions[key]; ok {
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	s, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if existing, ok := p.sessions[key]; ok {
		p.mu.Unlock()
		s.Close()
		return existing, nil
	}
	p.sessions[key] = s
	p.mu.Unlock()
	return s, nil
}

// CloseSource closes and releases every session opened against sourcePath,
// meant to be called from the registry's eviction hook when the Descriptor
// for that source is dropped.
func (p *SessionPool) CloseSource(sourcePath string) {
	p.mu.Lock()
	var toClose []*Session
	for key, s := range p.sessions {
		if key.sourcePath == sourcePath {
			toClose = append(toClose, s)
			delete(p.sessions, key)
		}
	}
	p.mu.Unlock()

	for _, s := range toClose {
		s.Close()
	}
}

func codecIDForTag(tag string) astiav.CodecID {
	switch tag {
	case "ac3":
		return astiav.CodecIDAc3
	case "eac3":
		return astiav.CodecIDEac3
	case "opus":
		return astiav.CodecIDOpus
	case "mp3":
		return astiav.CodecIDMp3
	case "aac":
		return astiav.CodecIDAac
	default:
		return astiav.CodecIDNone
	}
}

package transcode

import (
	"errors"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/hlsvod/hlsvod/internal/apperr"
	fmp4mux "github.com/hlsvod/hlsvod/internal/fmp4"
)

// EncodedFrame is one AAC-LC access unit produced by the encoder, with no
// ADTS framing (spec §4.6: "The encoder emits packets without ADTS
// framing").
type EncodedFrame struct {
	Payload  []byte
	Duration uint32 // in target-sample-rate ticks (1024 per AAC frame)
}

// TranscodePackets runs one window's worth of source packets through
// decode -> resample -> rechunk -> encode, returning AAC-LC frames in
// presentation order. Packets must already be scoped to the segment
// window by the caller (the audio window mapping lives in
// internal/segment, mirroring the copy path's separation of concerns).
func (s *Session) TranscodePackets(packets [][]byte) ([]EncodedFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pcm []float32
	for _, data := range packets {
		resampled, err := s.decodeAndResample(data)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindTranscodeFail, "decode/resample audio packet", err)
		}
		pcm = append(pcm, resampled...)
	}

	// Rechunk carried + new samples into AAC's fixed 1024-sample frames
	// (spec §4.6: "For codecs whose frame size does not divide evenly
	// into AAC's 1024-sample frame ... rechunks samples").
	pcm = append(s.carry, pcm...)
	var frames []EncodedFrame
	channels := max(s.channels, 1)
	frameLen := aacFrameSize * channels

	offset := 0
	for offset+frameLen <= len(pcm) {
		chunk := pcm[offset : offset+frameLen]
		encoded, err := s.encodeFrame(chunk)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindTranscodeFail, "encode AAC frame", err)
		}
		if encoded != nil {
			frames = append(frames, *encoded)
		}
		offset += frameLen
	}
	s.carry = append([]float32{}, pcm[offset:]...)

	if s.framesToDrop > 0 && len(frames) > 0 {
		drop := s.framesToDrop
		if drop > len(frames) {
			drop = len(frames)
		}
		frames = frames[drop:]
		s.framesToDrop -= drop
	}

	return frames, nil
}

// decodeAndResample feeds one source packet through the decoder and, for
// each emitted frame, the resampler (spec §4.6: "resample to 48 kHz FLTP via
// an incremental resampler that carries sample-buffer state across
// segments"). The resampler is opened once in NewSession and reused across
// every packet/segment for the life of the Session, so its internal
// fractional-sample history carries correctly across segment boundaries.
func (s *Session) decodeAndResample(data []byte) ([]float32, error) {
	pkt := astiav.AllocPacket()
	defer pkt.Free()
	pkt.SetData(data)

	if err := boundary(func() error { return s.decCtx.SendPacket(pkt) }); err != nil {
		return nil, err
	}

	var out []float32
	frame := astiav.AllocFrame()
	defer frame.Free()
	for {
		err := boundary(func() error { return s.decCtx.ReceiveFrame(frame) })
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		resampled, err := s.resampleFrame(frame)
		if err != nil {
			return nil, err
		}
		out = append(out, resampled...)
		frame.Unref()
	}
	return out, nil
}

// resampleFrame converts one decoded frame (whatever format/rate/layout the
// source codec produced) into 48kHz FLTP planar samples via the Session's
// long-lived SoftwareResampleContext.
func (s *Session) resampleFrame(src *astiav.Frame) ([]float32, error) {
	dst := astiav.AllocFrame()
	defer dst.Free()
	dst.SetSampleFormat(astiav.SampleFormatFltp)
	dst.SetSampleRate(s.sampleRate)
	dst.SetChannelLayout(src.ChannelLayout())

	if err := boundary(func() error { return s.resampler.ConvertFrame(src, dst) }); err != nil {
		return nil, err
	}
	return dst.PlanarFloatSamples(), nil
}

func (s *Session) encodeFrame(pcm []float32) (*EncodedFrame, error) {
	frame := astiav.AllocFrame()
	defer frame.Free()
	frame.SetSampleFormat(astiav.SampleFormatFltp)
	frame.SetSampleRate(s.sampleRate)
	frame.SetNbSamples(aacFrameSize)
	if err := boundary(frame.AllocBuffer); err != nil {
		return nil, err
	}
	frame.SetPlanarFloatSamples(pcm)

	if err := boundary(func() error { return s.encCtx.SendFrame(frame) }); err != nil {
		return nil, err
	}

	pkt := astiav.AllocPacket()
	defer pkt.Free()
	err := boundary(func() error { return s.encCtx.ReceivePacket(pkt) })
	if errors.Is(err, astiav.ErrEagain) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	payload := make([]byte, len(pkt.Data()))
	copy(payload, pkt.Data())
	return &EncodedFrame{Payload: payload, Duration: aacFrameSize}, nil
}

// ToSamples converts encoded AAC frames into fmp4 muxer samples — every
// AAC-LC frame is a sync sample.
func ToSamples(frames []EncodedFrame) []fmp4mux.Sample {
	out := make([]fmp4mux.Sample, 0, len(frames))
	for _, f := range frames {
		out = append(out, fmp4mux.Sample{
			Payload:    f.Payload,
			DurationTk: f.Duration,
			IsKeyframe: true,
		})
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

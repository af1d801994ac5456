package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
)

// Packet is one demuxed, still-encoded access unit.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	DurationTk  int64
	IsKeyframe  bool
	Data        []byte
}

// DisableAllExcept calls AVDISCARD_ALL on every stream but keepIndex, so the
// demuxer does the minimum work needed for a single-track segment build
// (spec §4.4: "calls AVDISCARD_ALL (or equivalent) on every stream except
// the target").
func (c *Container) DisableAllExcept(keepIndex int) {
	for _, s := range c.streams {
		if s.Index() == keepIndex {
			s.SetDiscard(astiav.DiscardNone)
		} else {
			s.SetDiscard(astiav.DiscardAll)
		}
	}
}

// SeekToPTS seeks the container to ptsTicks (in streamIndex's own timebase),
// backdated slightly so the preceding keyframe is available, per spec
// §4.4 ("seeks to segments[sequence].start_pts - ε").
func (c *Container) SeekToPTS(streamIndex int, ptsTicks int64) error {
	const epsilonTicks = 2
	target := ptsTicks - epsilonTicks
	if target < 0 {
		target = 0
	}
	return boundary(func() error {
		return c.formatCtx.SeekFrame(streamIndex, target, astiav.SeekFlagBackward)
	})
}

// ErrEOF signals the packet stream is exhausted.
var ErrEOF = io.EOF

// ReadPacket pulls the next packet from the container across all
// non-discarded streams. Returns ErrEOF at end of stream.
func (c *Container) ReadPacket() (Packet, error) {
	pkt := astiav.AllocPacket()
	defer pkt.Free()

	err := boundary(func() error {
		return c.formatCtx.ReadFrame(pkt)
	})
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Packet{}, ErrEOF
		}
		return Packet{}, err
	}

	data := make([]byte, len(pkt.Data()))
	copy(data, pkt.Data())

	return Packet{
		StreamIndex: pkt.StreamIndex(),
		PTS:         pkt.Pts(),
		DTS:         pkt.Dts(),
		DurationTk:  pkt.Duration(),
		IsKeyframe:  pkt.Flags().Has(astiav.PacketFlagKey),
		Data:        data,
	}, nil
}

// ScanKeyframes walks the entire video stream once collecting keyframe PTS
// values; the indexer runs it on every file, whether or not the container
// carries an index of its own. budget bounds how many packets are read:
// reading past it returns an error wrapping context.DeadlineExceeded, which
// the caller maps to IndexError{Timeout}. A budget <= 0 means no bound.
func (c *Container) ScanKeyframes(videoStreamIndex int, budget int) (keyframes []int64, durationTicks int64, err error) {
	c.DisableAllExcept(videoStreamIndex)
	if err := c.SeekToPTS(videoStreamIndex, 0); err != nil {
		return nil, 0, err
	}

	var lastPTS int64
	for i := 0; ; i++ {
		pkt, err := c.ReadPacket()
		if errors.Is(err, ErrEOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if budget > 0 && i >= budget {
			return nil, 0, fmt.Errorf("media: keyframe scan exceeded its budget of %d packets: %w", budget, context.DeadlineExceeded)
		}
		if pkt.StreamIndex != videoStreamIndex {
			continue
		}
		if pkt.IsKeyframe {
			keyframes = append(keyframes, pkt.PTS)
		}
		if pkt.PTS > lastPTS {
			lastPTS = pkt.PTS
		}
	}
	return keyframes, lastPTS, nil
}

package fmp4

import (
	"encoding/binary"
	"fmt"
)

// boxHeader is one ISO-BMFF box's size+type prefix.
//
// Grounded on the teacher's BoxHeader/peekBoxHeader/extractSequenceNumber/
// extractTiming/parseTraf functions in internal/relay/cmaf_muxer.go, which
// parse the same fields read-only; this version additionally WRITES the
// rewritten fields in place, since our muxer always restarts PTS/sequence
// at zero per fmp4.Part and needs the same continuity patch the teacher's
// relay server applies to its own live fragments.
type boxHeader struct {
	size     uint64 // total box size including header, in bytes
	boxType  string
	headerSz int // 8 for normal, 16 for 64-bit extended size
}

func peekBoxHeader(data []byte) (boxHeader, error) {
	if len(data) < 8 {
		return boxHeader{}, fmt.Errorf("fmp4: box header truncated: %d bytes", len(data))
	}
	size32 := binary.BigEndian.Uint32(data[0:4])
	boxType := string(data[4:8])

	if size32 == 1 {
		if len(data) < 16 {
			return boxHeader{}, fmt.Errorf("fmp4: extended box header truncated")
		}
		size64 := binary.BigEndian.Uint64(data[8:16])
		return boxHeader{size: size64, boxType: boxType, headerSz: 16}, nil
	}
	return boxHeader{size: uint64(size32), boxType: boxType, headerSz: 8}, nil
}

// PatchSegment rewrites every mfhd.sequence_number to sequence and every
// tfdt.baseMediaDecodeTime in the byte stream to consecutive decode times
// starting at startPTS (in the track's own timebase), advancing by each
// traf's trun-derived duration for the rare multi-fragment-per-segment case
// (spec §4.3 failure mode: "if the underlying muxer emits two consecutive
// moof boxes for a single requested segment... every tfdt within that
// segment is patched with an increasing decode time computed from the
// cumulative frame durations").
//
// data must already have any leading ftyp/moov stripped (spec §4.3: media
// segments are moof+mdat only) — PatchSegment walks moof/traf boxes and
// passes everything else (mdat, or repeated moof/mdat pairs) through
// unmodified.
func PatchSegment(data []byte, sequence uint32, startPTS int64) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)

	decodeTime := startPTS
	offset := 0
	for offset < len(out) {
		hdr, err := peekBoxHeader(out[offset:])
		if err != nil {
			return nil, err
		}
		if hdr.size == 0 || int(hdr.size) > len(out)-offset {
			return nil, fmt.Errorf("fmp4: box %q size %d overruns buffer at offset %d", hdr.boxType, hdr.size, offset)
		}
		boxEnd := offset + int(hdr.size)

		if hdr.boxType == "moof" {
			advance, err := patchMoof(out[offset:boxEnd], hdr.headerSz, sequence, decodeTime)
			if err != nil {
				return nil, err
			}
			decodeTime += advance
		}

		offset = boxEnd
	}
	return out, nil
}

// patchMoof rewrites mfhd and every traf's tfdt inside one moof box
// in place, returning the sum of durations found in this moof's truns so
// the caller can advance decodeTime for a following moof (audio's
// per-frame fragment mode).
func patchMoof(moof []byte, headerSz int, sequence uint32, decodeTime int64) (int64, error) {
	body := moof[headerSz:]
	offset := 0
	var totalDuration int64

	for offset < len(body) {
		hdr, err := peekBoxHeader(body[offset:])
		if err != nil {
			return 0, err
		}
		if hdr.size == 0 || int(hdr.size) > len(body)-offset {
			return 0, fmt.Errorf("fmp4: child box %q overruns moof at offset %d", hdr.boxType, offset)
		}
		childEnd := offset + int(hdr.size)
		child := body[offset:childEnd]

		switch hdr.boxType {
		case "mfhd":
			if err := patchMfhd(child, hdr.headerSz, sequence); err != nil {
				return 0, err
			}
		case "traf":
			dur, err := patchTraf(child, hdr.headerSz, decodeTime)
			if err != nil {
				return 0, err
			}
			totalDuration += dur
		}
		offset = childEnd
	}
	return totalDuration, nil
}

// mfhd body: version(1) + flags(3) + sequence_number(4).
func patchMfhd(mfhd []byte, headerSz int, sequence uint32) error {
	if len(mfhd) < headerSz+8 {
		return fmt.Errorf("fmp4: mfhd box truncated")
	}
	binary.BigEndian.PutUint32(mfhd[headerSz+4:headerSz+8], sequence)
	return nil
}

// patchTraf finds the traf's tfdt (and tfhd/trun to compute duration),
// rewrites tfdt.baseMediaDecodeTime to decodeTime, and returns the sum of
// sample durations from trun so a multi-fragment segment can advance the
// decode time for the next moof.
func patchTraf(traf []byte, headerSz int, decodeTime int64) (int64, error) {
	body := traf[headerSz:]
	offset := 0
	var duration int64

	for offset < len(body) {
		hdr, err := peekBoxHeader(body[offset:])
		if err != nil {
			return 0, err
		}
		if hdr.size == 0 || int(hdr.size) > len(body)-offset {
			return 0, fmt.Errorf("fmp4: child box %q overruns traf at offset %d", hdr.boxType, offset)
		}
		childEnd := offset + int(hdr.size)
		child := body[offset:childEnd]

		switch hdr.boxType {
		case "tfdt":
			if err := patchTfdt(child, hdr.headerSz, decodeTime); err != nil {
				return 0, err
			}
		case "trun":
			duration += sumTrunDurations(child, hdr.headerSz)
		}
		offset = childEnd
	}
	return duration, nil
}

// tfdt body: version(1) + flags(3) + baseMediaDecodeTime(4 or 8, by version).
func patchTfdt(tfdt []byte, headerSz int, decodeTime int64) error {
	if len(tfdt) < headerSz+4 {
		return fmt.Errorf("fmp4: tfdt box truncated")
	}
	version := tfdt[headerSz]
	switch version {
	case 0:
		if len(tfdt) < headerSz+8 {
			return fmt.Errorf("fmp4: tfdt v0 box truncated")
		}
		binary.BigEndian.PutUint32(tfdt[headerSz+4:headerSz+8], uint32(decodeTime))
	case 1:
		if len(tfdt) < headerSz+12 {
			return fmt.Errorf("fmp4: tfdt v1 box truncated")
		}
		binary.BigEndian.PutUint64(tfdt[headerSz+4:headerSz+12], uint64(decodeTime))
	default:
		return fmt.Errorf("fmp4: unsupported tfdt version %d", version)
	}
	return nil
}

// trun flags bits relevant here (ISO/IEC 14496-12 §8.8.8).
const (
	trunFlagSampleDuration = 0x000100
)

// sumTrunDurations reads trun's optional per-sample-duration field (when
// present in the flags) and sums it; this is only used for the rare
// multi-moof-per-segment audio case, so an absent duration field (flag
// unset) contributes zero and the caller's decodeTime simply does not
// advance for that traf.
func sumTrunDurations(trun []byte, headerSz int) int64 {
	if len(trun) < headerSz+8 {
		return 0
	}
	flags := uint32(trun[headerSz])<<16 | uint32(trun[headerSz+1])<<8 | uint32(trun[headerSz+2])
	sampleCount := binary.BigEndian.Uint32(trun[headerSz+4 : headerSz+8])

	pos := headerSz + 8
	if flags&0x000001 != 0 { // data-offset-present
		pos += 4
	}
	if flags&0x000004 != 0 { // first-sample-flags-present
		pos += 4
	}

	sampleSizePresent := flags&0x000200 != 0
	sampleFlagsPresent := flags&0x000400 != 0
	sampleCTSPresent := flags&0x000800 != 0

	var total int64
	for i := uint32(0); i < sampleCount; i++ {
		if pos+4 > len(trun) && flags&trunFlagSampleDuration != 0 {
			break
		}
		if flags&trunFlagSampleDuration != 0 {
			total += int64(binary.BigEndian.Uint32(trun[pos : pos+4]))
			pos += 4
		}
		if sampleSizePresent {
			pos += 4
		}
		if sampleFlagsPresent {
			pos += 4
		}
		if sampleCTSPresent {
			pos += 4
		}
	}
	return total
}

package fmp4

import (
	"encoding/binary"
	"testing"
)

// buildBox constructs one ISO-BMFF box with a 32-bit size prefix.
func buildBox(boxType string, body []byte) []byte {
	total := 8 + len(body)
	out := make([]byte, 0, total)
	sizeBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(sizeBuf, uint32(total))
	out = append(out, sizeBuf...)
	out = append(out, []byte(boxType)...)
	out = append(out, body...)
	return out
}

func buildMfhd(seq uint32) []byte {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[4:8], seq)
	return buildBox("mfhd", body)
}

func buildTfdt(version byte, baseTime uint64) []byte {
	var body []byte
	if version == 0 {
		body = make([]byte, 8)
		body[0] = 0
		binary.BigEndian.PutUint32(body[4:8], uint32(baseTime))
	} else {
		body = make([]byte, 12)
		body[0] = 1
		binary.BigEndian.PutUint64(body[4:12], baseTime)
	}
	return buildBox("tfdt", body)
}

func buildTraf(tfdt []byte) []byte {
	tfhd := buildBox("tfhd", make([]byte, 8))
	return buildBox("traf", append(append([]byte{}, tfhd...), tfdt...))
}

func buildMoof(mfhd, traf []byte) []byte {
	return buildBox("moof", append(append([]byte{}, mfhd...), traf...))
}

func TestPatchSegmentRewritesSequenceAndDecodeTime(t *testing.T) {
	mfhd := buildMfhd(999)
	tfdt := buildTfdt(0, 111)
	traf := buildTraf(tfdt)
	moof := buildMoof(mfhd, traf)
	mdat := buildBox("mdat", []byte{1, 2, 3, 4})

	segment := append(append([]byte{}, moof...), mdat...)

	patched, err := PatchSegment(segment, 42, 123456)
	if err != nil {
		t.Fatalf("PatchSegment: %v", err)
	}

	if string(patched[4:8]) != "moof" {
		t.Fatalf("expected segment to start with moof box, got %q", patched[4:8])
	}

	// mfhd sequence_number is at moof-body offset: header(8)+mfhd-header(8)+4.
	mfhdSeqOffset := 8 + 8 + 4
	gotSeq := binary.BigEndian.Uint32(patched[mfhdSeqOffset : mfhdSeqOffset+4])
	if gotSeq != 42 {
		t.Fatalf("mfhd.sequence_number = %d, want 42", gotSeq)
	}

	tfdtOffset := 8 + len(mfhd) + 8 /* traf header */ + 16 /* tfhd box */ + 8 /* tfdt header */ + 4
	gotDecode := binary.BigEndian.Uint32(patched[tfdtOffset : tfdtOffset+4])
	if gotDecode != 123456 {
		t.Fatalf("tfdt.baseMediaDecodeTime = %d, want 123456", gotDecode)
	}

	// mdat payload must be untouched.
	mdatStart := len(moof)
	if string(patched[mdatStart+8:]) != "\x01\x02\x03\x04" {
		t.Fatalf("mdat payload was modified")
	}
}

func TestPatchSegmentPreservesTfdtVersion1(t *testing.T) {
	mfhd := buildMfhd(1)
	tfdt := buildTfdt(1, 0)
	traf := buildTraf(tfdt)
	moof := buildMoof(mfhd, traf)

	patched, err := PatchSegment(moof, 7, 999999999999)
	if err != nil {
		t.Fatalf("PatchSegment: %v", err)
	}

	tfdtOffset := 8 + len(mfhd) + 8 /* traf header */ + 16 /* tfhd box */ + 8 /* tfdt header */
	version := patched[tfdtOffset]
	if version != 1 {
		t.Fatalf("tfdt version changed from 1 to %d", version)
	}
	got := binary.BigEndian.Uint64(patched[tfdtOffset+4 : tfdtOffset+12])
	if got != 999999999999 {
		t.Fatalf("tfdt.baseMediaDecodeTime (v1) = %d, want 999999999999", got)
	}
}

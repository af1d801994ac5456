package segment

import (
	"bytes"
	"testing"
)

func buildAvcC(sps, pps []byte) []byte {
	var b []byte
	b = append(b, 1)              // configurationVersion
	b = append(b, 0x64, 0, 0x1f)  // profile/compat/level, arbitrary
	b = append(b, 0xff)           // lengthSizeMinusOne (reserved bits set) | 3
	b = append(b, 0xe1)           // reserved bits | numSPS=1
	b = append(b, byte(len(sps)>>8), byte(len(sps)))
	b = append(b, sps...)
	b = append(b, 1) // numPPS=1, no reserved bits to mask here
	b = append(b, byte(len(pps)>>8), byte(len(pps)))
	b = append(b, pps...)
	return b
}

func TestAvcDecoderConfigExtractsSPSPPS(t *testing.T) {
	sps := []byte{0x67, 0x64, 0x00, 0x1f, 0xac}
	pps := []byte{0x68, 0xeb}
	raw := buildAvcC(sps, pps)

	gotSPS, gotPPS, err := avcDecoderConfig(raw)
	if err != nil {
		t.Fatalf("avcDecoderConfig: %v", err)
	}
	if !bytes.Equal(gotSPS, sps) {
		t.Fatalf("SPS = %x, want %x", gotSPS, sps)
	}
	if !bytes.Equal(gotPPS, pps) {
		t.Fatalf("PPS = %x, want %x", gotPPS, pps)
	}
}

func TestAvcDecoderConfigRejectsShortExtraData(t *testing.T) {
	if _, _, err := avcDecoderConfig([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated avcC")
	}
}

func TestAvcDecoderConfigRejectsUnsupportedVersion(t *testing.T) {
	raw := buildAvcC([]byte{0x67}, []byte{0x68})
	raw[0] = 2
	if _, _, err := avcDecoderConfig(raw); err == nil {
		t.Fatal("expected error for configurationVersion != 1")
	}
}

func buildHvcC(vps, sps, pps []byte) []byte {
	b := make([]byte, hevcNALHeaderLen)
	b[0] = 1 // configurationVersion
	b = append(b, 3) // numOfArrays

	appendArray := func(nalType byte, nal []byte) {
		b = append(b, nalType&0x3f)
		b = append(b, 0, 1) // numNalus = 1
		b = append(b, byte(len(nal)>>8), byte(len(nal)))
		b = append(b, nal...)
	}
	appendArray(hevcNALTypeVPS, vps)
	appendArray(hevcNALTypeSPS, sps)
	appendArray(hevcNALTypePPS, pps)
	return b
}

func TestHevcDecoderConfigExtractsVPSSPSPPS(t *testing.T) {
	vps := []byte{0x40, 0x01, 0x0c}
	sps := []byte{0x42, 0x01, 0x01}
	pps := []byte{0x44, 0x01}
	raw := buildHvcC(vps, sps, pps)

	gotVPS, gotSPS, gotPPS, err := hevcDecoderConfig(raw)
	if err != nil {
		t.Fatalf("hevcDecoderConfig: %v", err)
	}
	if !bytes.Equal(gotVPS, vps) {
		t.Fatalf("VPS = %x, want %x", gotVPS, vps)
	}
	if !bytes.Equal(gotSPS, sps) {
		t.Fatalf("SPS = %x, want %x", gotSPS, sps)
	}
	if !bytes.Equal(gotPPS, pps) {
		t.Fatalf("PPS = %x, want %x", gotPPS, pps)
	}
}

func TestHevcDecoderConfigRejectsMissingParameterSet(t *testing.T) {
	raw := make([]byte, hevcNALHeaderLen)
	raw[0] = 1
	raw = append(raw, 0) // numOfArrays = 0
	if _, _, _, err := hevcDecoderConfig(raw); err == nil {
		t.Fatal("expected error when no VPS/SPS/PPS arrays are present")
	}
}

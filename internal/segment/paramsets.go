package segment

import "fmt"

// avcDecoderConfig parses an ISO/IEC 14496-15 AVCDecoderConfigurationRecord
// (the avcC box payload libavformat exposes as H.264 codecpar extradata for
// MP4/MOV-sourced streams) into its first SPS and PPS NAL units.
//
// Grounded on the teacher's ExtractVideoCodecParams
// (internal/relay/fmp4_adapter.go), which splits SPS/PPS out before
// constructing an fmp4 codec and only returns once both are present; this
// version parses the ISO configuration record directly instead of scanning
// an Annex-B elementary stream, since our source extradata is already avcC.
func avcDecoderConfig(extraData []byte) (sps, pps []byte, err error) {
	if len(extraData) < 7 {
		return nil, nil, fmt.Errorf("avcC: extradata too short (%d bytes)", len(extraData))
	}
	if extraData[0] != 1 {
		return nil, nil, fmt.Errorf("avcC: unsupported configurationVersion %d", extraData[0])
	}

	pos := 5
	numSPS := int(extraData[pos] & 0x1f)
	pos++
	for i := 0; i < numSPS; i++ {
		if pos+2 > len(extraData) {
			return nil, nil, fmt.Errorf("avcC: truncated SPS length")
		}
		l := int(extraData[pos])<<8 | int(extraData[pos+1])
		pos += 2
		if pos+l > len(extraData) {
			return nil, nil, fmt.Errorf("avcC: truncated SPS payload")
		}
		if sps == nil {
			sps = extraData[pos : pos+l]
		}
		pos += l
	}

	if pos >= len(extraData) {
		return nil, nil, fmt.Errorf("avcC: missing PPS count")
	}
	numPPS := int(extraData[pos])
	pos++
	for i := 0; i < numPPS; i++ {
		if pos+2 > len(extraData) {
			return nil, nil, fmt.Errorf("avcC: truncated PPS length")
		}
		l := int(extraData[pos])<<8 | int(extraData[pos+1])
		pos += 2
		if pos+l > len(extraData) {
			return nil, nil, fmt.Errorf("avcC: truncated PPS payload")
		}
		if pps == nil {
			pps = extraData[pos : pos+l]
		}
		pos += l
	}

	if sps == nil || pps == nil {
		return nil, nil, fmt.Errorf("avcC: extradata carries no SPS/PPS")
	}
	return sps, pps, nil
}

// hevcNALHeaderLen is the byte offset of numOfArrays within an
// HEVCDecoderConfigurationRecord: configurationVersion, the packed
// general_profile/tier/idc/compatibility/constraint/level fields,
// min_spatial_segmentation_idc, parallelismType, chromaFormat,
// bitDepth{Luma,Chroma}Minus8, avgFrameRate, and the constantFrameRate/
// numTemporalLayers/temporalIdNested/lengthSizeMinusOne byte (ISO/IEC
// 14496-15 §8.3.3.1) — 22 bytes before the numOfArrays field itself.
const hevcNALHeaderLen = 22

// HEVC NAL unit types used as hvcC array tags (ITU-T H.265 Table 7-1).
const (
	hevcNALTypeVPS = 32
	hevcNALTypeSPS = 33
	hevcNALTypePPS = 34
)

// hevcDecoderConfig parses an HEVCDecoderConfigurationRecord (hvcC) into its
// first VPS, SPS, and PPS NAL units, mirroring avcDecoderConfig's approach
// for H.265's three-parameter-set configuration record.
func hevcDecoderConfig(extraData []byte) (vps, sps, pps []byte, err error) {
	if len(extraData) < hevcNALHeaderLen+1 {
		return nil, nil, nil, fmt.Errorf("hvcC: extradata too short (%d bytes)", len(extraData))
	}
	if extraData[0] != 1 {
		return nil, nil, nil, fmt.Errorf("hvcC: unsupported configurationVersion %d", extraData[0])
	}

	numArrays := int(extraData[hevcNALHeaderLen])
	pos := hevcNALHeaderLen + 1
	for i := 0; i < numArrays; i++ {
		if pos+3 > len(extraData) {
			return nil, nil, nil, fmt.Errorf("hvcC: truncated array header")
		}
		nalType := extraData[pos] & 0x3f
		numNalus := int(extraData[pos+1])<<8 | int(extraData[pos+2])
		pos += 3

		for j := 0; j < numNalus; j++ {
			if pos+2 > len(extraData) {
				return nil, nil, nil, fmt.Errorf("hvcC: truncated NAL length")
			}
			l := int(extraData[pos])<<8 | int(extraData[pos+1])
			pos += 2
			if pos+l > len(extraData) {
				return nil, nil, nil, fmt.Errorf("hvcC: truncated NAL payload")
			}
			nal := extraData[pos : pos+l]
			pos += l

			switch nalType {
			case hevcNALTypeVPS:
				if vps == nil {
					vps = nal
				}
			case hevcNALTypeSPS:
				if sps == nil {
					sps = nal
				}
			case hevcNALTypePPS:
				if pps == nil {
					pps = nal
				}
			}
		}
	}

	if vps == nil || sps == nil || pps == nil {
		return nil, nil, nil, fmt.Errorf("hvcC: extradata carries no VPS/SPS/PPS")
	}
	return vps, sps, pps, nil
}

package fmp4

import "fmt"

// CodecString generates an RFC 6381 codec tag for the given normalized
// codec tag and raw extra-data. Only H.264 reads the extra-data (profile,
// constraint and level bytes 1-3 of the avcC record); every other codec,
// H.265 included, maps to a fixed string. The switch is
// grounded on the teacher's GenerateCodecString switch over mp4.Codec
// (internal/relay/codec_format.go) but operating on our own
// index.VideoStreamInfo/AudioStreamInfo shape instead of mediacommon's
// mp4.Codec union, since the indexer keeps extra-data as raw bytes rather
// than decoding it into mediacommon's codec structs up front.
func CodecString(codecTag string, extraData []byte) string {
	switch codecTag {
	case "h264":
		if len(extraData) >= 4 {
			profileIDC := extraData[1]
			constraintFlags := extraData[2]
			levelIDC := extraData[3]
			return fmt.Sprintf("avc1.%02x%02x%02x", profileIDC, constraintFlags, levelIDC)
		}
		return "avc1.64001f"
	case "h265":
		return "hvc1.1.6.L93.B0"
	case "vp9":
		return "vp09.00.31.08"
	case "av1":
		return "av01.0.04M.08"
	case "aac":
		return "mp4a.40.2"
	case "opus":
		return "opus"
	case "ac3":
		return "ac-3"
	case "eac3":
		return "ec-3"
	case "mp3":
		return "mp4a.40.34"
	default:
		return codecTag
	}
}

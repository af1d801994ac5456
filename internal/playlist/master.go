// Package playlist synthesizes HLS master and variant playlists from an
// indexed descriptor and an audio plan (spec §4.10 playlist contract).
//
// No pack example depends on an m3u8-*writing* library (the retrieval
// pack's sibling m3u8 example is a parser); this hand-written synthesis
// follows spec §4.10's literal wire format line by line instead.
package playlist

import (
	"fmt"
	"math"
	"strings"

	"github.com/hlsvod/hlsvod/internal/audioplan"
	"github.com/hlsvod/hlsvod/internal/fmp4"
	"github.com/hlsvod/hlsvod/internal/index"
)

// VariantStream is one EXT-X-STREAM-INF entry: a video track paired with an
// audio group.
type VariantStream struct {
	VideoTrack int
	AudioGroup string
	Bandwidth  int64
	Width      int
	Height     int
	Codecs     []string
}

// Master renders the master playlist for a descriptor, given the planned
// audio variants and available (non-bitmap) subtitle streams.
func Master(d *index.Descriptor, audioVariants []audioplan.Variant, basePath string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	b.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")

	audioGroups, groupOrder := groupAudioVariants(audioVariants)
	for _, groupID := range groupOrder {
		variants := audioGroups[groupID]
		for i, v := range variants {
			def := "NO"
			if i == 0 {
				def = "YES"
			}
			fmt.Fprintf(&b, `#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=%q,LANGUAGE=%q,NAME=%q,DEFAULT=%s,URI=%q`+"\n",
				groupID, v.Language, fmt.Sprintf("%s (%s)", v.Language, v.CodecTag), def,
				fmt.Sprintf("%s/a/%d.m3u8", basePath, v.SourceStreamIndex))
		}
	}

	seenSub := 0
	for _, st := range d.SubtitleStreams {
		if st.Format == index.SubtitleBitmap {
			continue
		}
		def := "NO"
		if seenSub == 0 {
			def = "YES"
		}
		seenSub++
		fmt.Fprintf(&b, `#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",LANGUAGE=%q,NAME=%q,DEFAULT=%s,URI=%q`+"\n",
			st.Language, st.Language, def, fmt.Sprintf("%s/s/%d.m3u8", basePath, st.Index))
	}

	hasSubs := false
	for _, st := range d.SubtitleStreams {
		if st.Format != index.SubtitleBitmap {
			hasSubs = true
		}
	}

	for _, v := range d.VideoStreams {
		for _, groupID := range groupOrder {
			variants := audioGroups[groupID]
			if len(variants) == 0 {
				continue
			}
			codecs := []string{fmp4.CodecString(v.CodecTag, v.ExtraData)}
			for _, av := range variants {
				codecs = append(codecs, fmp4.CodecString(av.CodecTag, nil))
			}
			bandwidth := v.Bitrate
			if bandwidth == 0 {
				bandwidth = 2_000_000
			}
			fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d,CODECS=%q,AUDIO=%q",
				bandwidth, v.Width, v.Height, strings.Join(codecs, ","), groupID)
			if hasSubs {
				fmt.Fprintf(&b, `,SUBTITLES="subs"`)
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "%s/v/%d.m3u8\n", basePath, v.Index)
		}
		if len(audioGroups) == 0 {
			codecs := []string{fmp4.CodecString(v.CodecTag, v.ExtraData)}
			bandwidth := v.Bitrate
			if bandwidth == 0 {
				bandwidth = 2_000_000
			}
			fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d,CODECS=%q\n",
				bandwidth, v.Width, v.Height, strings.Join(codecs, ","))
			fmt.Fprintf(&b, "%s/v/%d.m3u8\n", basePath, v.Index)
		}
	}

	return b.String()
}

// groupAudioVariants buckets variants by GROUP-ID, returning both the
// buckets and the order group IDs were first seen in — playlist output must
// be deterministic across builds, and Go map iteration isn't.
func groupAudioVariants(variants []audioplan.Variant) (map[string][]audioplan.Variant, []string) {
	groups := make(map[string][]audioplan.Variant)
	var order []string
	for _, v := range variants {
		if _, ok := groups[v.GroupID]; !ok {
			order = append(order, v.GroupID)
		}
		groups[v.GroupID] = append(groups[v.GroupID], v)
	}
	return groups, order
}

// Variant renders one EXT-X-VERSION:7 VOD variant playlist for a track
// (video, audio, or subtitle — all three share the same segment-list shape).
func Variant(d *index.Descriptor, trackKind string, track int, initURI string, segURIFormat string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	target := 0.0
	for _, s := range d.Segments {
		if s.DurationS > target {
			target = s.DurationS
		}
	}
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", int(math.Ceil(target)))
	if initURI != "" {
		fmt.Fprintf(&b, "#EXT-X-MAP:URI=%q\n", initURI)
	}

	for _, s := range d.Segments {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", s.DurationS)
		fmt.Fprintf(&b, segURIFormat+"\n", s.Sequence)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// Package audioplan decides which audio variants a client sees, applying
// the per-language-group exposure/transcode rules from spec §4.2.
package audioplan

import "github.com/hlsvod/hlsvod/internal/index"

// Variant is one audio rendition offered to a client.
type Variant struct {
	SourceStreamIndex int
	CodecTag          string // output codec tag, e.g. "aac", "ac3"
	Language          string
	Transcode         bool
	GroupID           string
}

// Plan implements the planner contract: plan(descriptor, accept_codecs) -> [Variant].
// A nil or empty accept set means "accept everything" (spec: "given no
// accept_codecs, all audio streams are exposed unchanged").
func Plan(d *index.Descriptor, acceptCodecs map[string]bool) []Variant {
	acceptAll := len(acceptCodecs) == 0

	groups := make(map[string][]index.AudioStreamInfo)
	var order []string
	for _, a := range d.AudioStreams {
		lang := a.Language
		if lang == "" {
			lang = "und"
		}
		if _, ok := groups[lang]; !ok {
			order = append(order, lang)
		}
		groups[lang] = append(groups[lang], a)
	}

	var out []Variant
	for _, lang := range order {
		streams := groups[lang]

		var exposed []Variant
		for _, s := range streams {
			if acceptAll || acceptCodecs[s.CodecTag] {
				exposed = append(exposed, Variant{
					SourceStreamIndex: s.Index,
					CodecTag:          s.CodecTag,
					Language:          lang,
					Transcode:         false,
					GroupID:           s.CodecTag,
				})
			}
		}

		if len(exposed) == 0 {
			if acceptAll || acceptCodecs["aac"] {
				// Already-AAC sources are never transcoded; if one
				// exists in the group it would already have been
				// exposed above, so only reach here for non-AAC groups.
				out = append(out, Variant{
					SourceStreamIndex: streams[0].Index,
					CodecTag:          "aac",
					Language:          lang,
					Transcode:         true,
					GroupID:           "aac",
				})
			}
			continue
		}

		out = append(out, exposed...)
	}

	return out
}

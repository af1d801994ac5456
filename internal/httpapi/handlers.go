package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hlsvod/hlsvod/internal/apperr"
	"github.com/hlsvod/hlsvod/internal/audioplan"
	"github.com/hlsvod/hlsvod/internal/cache"
	"github.com/hlsvod/hlsvod/internal/index"
	"github.com/hlsvod/hlsvod/internal/playlist"
	"github.com/hlsvod/hlsvod/internal/segment"
	"github.com/hlsvod/hlsvod/internal/subtitle"
	"github.com/hlsvod/hlsvod/internal/transcode"
	"github.com/hlsvod/hlsvod/internal/workpool"
)

// trackKey disambiguates cache.Key.Track across the three track kinds,
// since a video track 0 and an audio track 0 are different artifacts.
func trackKey(t TrackType, n int) int {
	switch t {
	case TrackAudio:
		return 100_000 + n
	case TrackSubtitle:
		return 200_000 + n
	default:
		return n
	}
}

// dispatch renders the response for one classified request, building and
// caching whatever artifact it names (spec §4.10 URL scheme).
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req Request) {
	sourcePath := s.sourcePath(req)

	desc, err := s.registry.GetOrIndex(r.Context(), sourcePath)
	if err != nil {
		s.metrics.ErrorsTotal.WithLabelValues(string(errKind(err))).Inc()
		writeError(w, err)
		return
	}

	switch req.Kind {
	case KindMasterPlaylist:
		s.serveMasterPlaylist(w, r, desc, req)
	case KindVariantPlaylist:
		s.serveVariantPlaylist(w, r, desc, req)
	case KindInit:
		s.serveInit(w, r, desc, req)
	case KindMedia:
		s.serveMedia(w, r, desc, req)
	default:
		http.NotFound(w, r)
	}

	s.refreshGauges()
}

// refreshGauges syncs the cumulative cache hit/miss counters and the
// active-stream gauge from their sources of truth (internal/cache,
// internal/registry) after every request whose descriptor lookup succeeded,
// per spec §6's metric list.
func (s *Server) refreshGauges() {
	hits, misses, _ := s.cache.Stats()
	s.metrics.syncCacheCounters(hits, misses)
	s.metrics.RefreshCacheRatio(hits, misses)
	s.metrics.ActiveStreams.Set(float64(s.registry.Len()))
}

func errKind(err error) apperr.Kind {
	if ae, ok := apperr.As(err); ok {
		return ae.Kind
	}
	return apperr.KindInternal
}

func acceptedCodecs(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("codecs")
	if q == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, c := range strings.Split(q, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out[c] = true
		}
	}
	return out
}

func (s *Server) serveMasterPlaylist(w http.ResponseWriter, r *http.Request, d *index.Descriptor, req Request) {
	key := cache.Key{DescriptorID: d.ID, Kind: cache.KindPlaylist, Track: -1, Sequence: -1}
	body, err := s.cache.GetOrBuild(key, func() ([]byte, error) {
		variants := audioplan.Plan(d, acceptedCodecs(r))
		return []byte(playlist.Master(d, variants, req.BasePath+"."+req.Ext)), nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.writePlaylist(w, body)
}

func (s *Server) serveVariantPlaylist(w http.ResponseWriter, r *http.Request, d *index.Descriptor, req Request) {
	key := cache.Key{DescriptorID: d.ID, Kind: cache.KindPlaylist, Track: trackKey(req.Track, req.TrackNum), Sequence: -1}
	body, err := s.cache.GetOrBuild(key, func() ([]byte, error) {
		base := fmt.Sprintf("%s.%s/%s/%d", req.BasePath, req.Ext, req.Track, req.TrackNum)
		switch req.Track {
		case TrackVideo:
			if _, ok := d.VideoStream(req.TrackNum); !ok {
				return nil, apperr.New(apperr.KindNotFound, "video track not found")
			}
			return []byte(playlist.Variant(d, "video", req.TrackNum, base+".init.mp4", base+".%d.m4s")), nil
		case TrackAudio:
			if _, ok := d.AudioStream(req.TrackNum); !ok {
				return nil, apperr.New(apperr.KindNotFound, "audio track not found")
			}
			return []byte(playlist.Variant(d, "audio", req.TrackNum, base+".init.mp4", base+".%d.m4s")), nil
		case TrackSubtitle:
			st, ok := d.SubtitleStream(req.TrackNum)
			if !ok || st.Format == index.SubtitleBitmap {
				return nil, apperr.New(apperr.KindNotFound, "subtitle track not found")
			}
			return []byte(playlist.Variant(d, "subtitle", req.TrackNum, "", base+".%d.vtt")), nil
		default:
			return nil, apperr.New(apperr.KindBadRequest, "unknown track kind")
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.writePlaylist(w, body)
}

func (s *Server) serveInit(w http.ResponseWriter, r *http.Request, d *index.Descriptor, req Request) {
	isAAC := req.Track == TrackAudio && isTranscodedTarget(d, req.TrackNum, acceptedCodecs(r))
	key := cache.Key{DescriptorID: d.ID, Kind: initKind(req.Track), Track: trackKey(req.Track, req.TrackNum), Sequence: -1}

	body, err := workpool.Submit(r.Context(), s.pool, func() ([]byte, error) {
		return s.cache.GetOrBuild(key, func() ([]byte, error) {
			switch req.Track {
			case TrackVideo:
				return segment.BuildVideoInit(d, req.TrackNum)
			case TrackAudio:
				if isAAC {
					return segment.BuildAudioTranscodedInit(d, req.TrackNum, s.cfg.Audio.TargetSampleRate)
				}
				return segment.BuildAudioInit(d, req.TrackNum)
			default:
				return nil, apperr.New(apperr.KindBadRequest, "init segments only apply to video/audio tracks")
			}
		})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSegment(w, r, body, "video/mp4")
}

func (s *Server) serveMedia(w http.ResponseWriter, r *http.Request, d *index.Descriptor, req Request) {
	switch req.Track {
	case TrackVideo:
		s.serveVideoMedia(w, r, d, req)
	case TrackAudio:
		s.serveAudioMedia(w, r, d, req)
	case TrackSubtitle:
		s.serveSubtitleMedia(w, r, d, req)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) serveVideoMedia(w http.ResponseWriter, r *http.Request, d *index.Descriptor, req Request) {
	key := cache.Key{DescriptorID: d.ID, Kind: cache.KindVideoSeg, Track: req.TrackNum, Sequence: req.Sequence}
	body, err := workpool.Submit(r.Context(), s.pool, func() ([]byte, error) {
		return s.cache.GetOrBuild(key, func() ([]byte, error) {
			return segment.BuildVideoMedia(d, req.TrackNum, req.Sequence)
		})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSegment(w, r, body, "video/mp4")
}

func (s *Server) serveAudioMedia(w http.ResponseWriter, r *http.Request, d *index.Descriptor, req Request) {
	transcodeIt := isTranscodedTarget(d, req.TrackNum, acceptedCodecs(r))
	key := cache.Key{DescriptorID: d.ID, Kind: cache.KindAudioSeg, Track: trackKey(req.Track, req.TrackNum), Sequence: req.Sequence}

	body, err := workpool.Submit(r.Context(), s.pool, func() ([]byte, error) {
		return s.cache.GetOrBuild(key, func() ([]byte, error) {
			if !transcodeIt {
				return segment.BuildAudioMediaCopy(d, req.TrackNum, req.Sequence)
			}
			a, ok := d.AudioStream(req.TrackNum)
			if !ok {
				return nil, apperr.New(apperr.KindNotFound, "audio track not found")
			}
			sess, err := s.sessions.Get(d.SourcePath, req.TrackNum, transcode.Config{
				SourceCodecTag:   a.CodecTag,
				SourceExtraData:  a.ExtraData,
				SourceSampleRate: a.SampleRate,
				SourceChannels:   a.Channels,
				TargetSampleRate: s.cfg.Audio.TargetSampleRate,
				AACBitrate:       s.cfg.Audio.AACBitrate,
			})
			if err != nil {
				return nil, err
			}
			s.metrics.TranscodeOpsTotal.Inc()
			return segment.BuildAudioMediaTranscode(d, req.TrackNum, req.Sequence, sess)
		})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSegment(w, r, body, "video/mp4")
}

func (s *Server) serveSubtitleMedia(w http.ResponseWriter, r *http.Request, d *index.Descriptor, req Request) {
	key := cache.Key{DescriptorID: d.ID, Kind: cache.KindSubtitleSeg, Track: req.TrackNum, Sequence: req.Sequence}
	body, err := workpool.Submit(r.Context(), s.pool, func() ([]byte, error) {
		return s.cache.GetOrBuild(key, func() ([]byte, error) {
			st, ok := d.SubtitleStream(req.TrackNum)
			if !ok {
				return nil, apperr.New(apperr.KindNotFound, "subtitle track not found")
			}
			seg, ok := d.SegmentAt(req.Sequence)
			if !ok {
				return nil, apperr.New(apperr.KindNotFound, "segment not found")
			}
			vtt := subtitle.BuildSegment(d.SubtitleCues[st.Index], seg.StartPTS, seg.EndPTS, d.VideoTimebase)
			return []byte(vtt), nil
		})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSegment(w, r, body, "text/vtt")
}

// isTranscodedTarget reports whether the audio planner's fallback rule
// would expose this track as transcoded AAC for the given accept set.
func isTranscodedTarget(d *index.Descriptor, track int, accept map[string]bool) bool {
	for _, v := range audioplan.Plan(d, accept) {
		if v.SourceStreamIndex == track {
			return v.Transcode
		}
	}
	return false
}

func initKind(t TrackType) cache.Kind {
	if t == TrackAudio {
		return cache.KindAudioInit
	}
	return cache.KindVideoInit
}

func (s *Server) writePlaylist(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	n, _ := w.Write(body)
	s.metrics.BytesServedTotal.Add(float64(n))
}

// writeSegment frames an already-rendered artifact, honoring a single-range
// Range request the way a static file server would (spec's supplemented
// Range-request behavior — the bytes are already built, only the framing
// changes).
func (s *Server) writeSegment(w http.ResponseWriter, r *http.Request, body []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		n, _ := w.Write(body)
		s.metrics.BytesServedTotal.Add(float64(n))
		return
	}

	start, end, ok := parseSingleRange(rangeHeader, len(body))
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(body)))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(body)))
	w.Header().Set("Content-Length", strconv.Itoa(end-start+1))
	w.WriteHeader(http.StatusPartialContent)
	n, _ := w.Write(body[start : end+1])
	s.metrics.BytesServedTotal.Add(float64(n))
}

// parseSingleRange parses a "bytes=start-end" single-range header; an open
// end ("bytes=N-") runs to the last byte and a suffix form ("bytes=-N")
// selects the last N bytes. Multiple ranges, malformed headers, and starts
// past the end report ok=false, which writeSegment answers with 416.
func parseSingleRange(header string, size int) (start, end int, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) || strings.Contains(header, ",") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, prefix)
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	if parts[0] == "" {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}
	s, err := strconv.Atoi(parts[0])
	if err != nil || s < 0 || s >= size {
		return 0, 0, false
	}
	e := size - 1
	if parts[1] != "" {
		e, err = strconv.Atoi(parts[1])
		if err != nil || e < s {
			return 0, 0, false
		}
		if e >= size {
			e = size - 1
		}
	}
	return s, e, true
}

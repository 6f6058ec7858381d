package api

import (
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/topicseg/topicseg-agent/internal/timecode"
)

func segmentsByTimeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "id")

		start, end, ok := timeRange(w, r)
		if !ok {
			return
		}

		segments, err := cfg.Service.SegmentsByTime(r.Context(), videoID, start, end)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, SegmentsResponse{VideoID: videoID, Segments: nonNilSegments(segments)})
	}
}

func searchSegmentsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "id")
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			WriteError(w, http.StatusBadRequest, "q is required", "BAD_REQUEST")
			return
		}

		segments, err := cfg.Service.SearchSegments(r.Context(), videoID, query)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, SegmentsResponse{VideoID: videoID, Segments: nonNilSegments(segments)})
	}
}

func segmentAtHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "id")
		t := r.URL.Query().Get("t")
		if t == "" {
			WriteError(w, http.StatusBadRequest, "t is required", "BAD_REQUEST")
			return
		}
		at, err := parseSeconds(t)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		seg, err := cfg.Service.SegmentAt(r.Context(), videoID, at)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if seg == nil {
			WriteError(w, http.StatusNotFound, "no segment at "+timecode.Format(at), "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, seg)
	}
}

func transcriptRangeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "id")

		start, end, ok := timeRange(w, r)
		if !ok {
			return
		}

		snippets, err := cfg.Service.TranscriptRange(r.Context(), videoID, start, end)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := TranscriptRangeResponse{
			VideoID:  videoID,
			Start:    start,
			End:      end,
			Snippets: make([]SnippetResponse, len(snippets)),
		}
		for i, sn := range snippets {
			resp.Snippets[i] = SnippetResponse{
				Text:      sn.Text,
				Start:     sn.Start,
				Duration:  sn.Duration,
				Timestamp: timecode.Format(sn.Start),
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// timeRange reads the start and end query parameters. A missing start is 0
// and a missing end is unbounded. It writes the error response itself.
func timeRange(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	q := r.URL.Query()
	start, end := 0.0, math.MaxFloat64

	if s := q.Get("start"); s != "" {
		v, err := parseSeconds(s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid start: "+err.Error(), "BAD_REQUEST")
			return 0, 0, false
		}
		start = v
	}
	if e := q.Get("end"); e != "" {
		v, err := parseSeconds(e)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid end: "+err.Error(), "BAD_REQUEST")
			return 0, 0, false
		}
		end = v
	}
	return start, end, true
}

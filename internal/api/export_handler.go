package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/topicseg/topicseg-agent/internal/export"
)

const defaultFrameRate = 30.0

// exportHandler serves the latest segmentation of a video as a chapter list
// or an EDL. It never triggers a new run.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "id")
		q := r.URL.Query()

		format := strings.ToLower(q.Get("format"))
		if format == "" {
			format = export.FormatChapters
		}
		contentType, err := export.ContentType(format)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		frameRate := defaultFrameRate
		if fps := q.Get("fps"); fps != "" {
			frameRate, err = strconv.ParseFloat(fps, 64)
			if err != nil || frameRate <= 0 || frameRate > 120 {
				WriteError(w, http.StatusBadRequest, "fps must be between 0 and 120", "BAD_REQUEST")
				return
			}
		}

		seg, err := cfg.Service.LatestSegmentation(r.Context(), videoID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if seg == nil || len(seg.Segments) == 0 {
			WriteError(w, http.StatusNotFound, "no segmentation stored for video", "NOT_FOUND")
			return
		}

		var body string
		switch format {
		case export.FormatEDL:
			body = export.GenerateEDL(seg, q.Get("media"), frameRate)
		default:
			body = export.Chapters(seg)
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(videoID, format)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

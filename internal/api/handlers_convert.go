package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgallion1/pdfmd/internal/convert"
	"github.com/dgallion1/pdfmd/internal/extract"
	"github.com/dgallion1/pdfmd/internal/markdown"
)

const msgTooLarge = "File too large"

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, msgTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, convert.MsgNoFile, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, convert.MsgNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	var opts extract.Options
	if v := r.FormValue("max_pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "max_pages must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.MaxPages = n
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, convert.MsgConvertFailed, http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, msgTooLarge, http.StatusRequestEntityTooLarge)
		return
	}

	res := s.pipeline.Convert(r.Context(), convert.UploadedDocument{
		Data:    data,
		Name:    header.Filename,
		Options: opts,
	})
	if !res.OK() {
		if res.Failure.Kind.ClientError() {
			jsonError(w, res.Failure.Message, http.StatusBadRequest)
			return
		}
		jsonError(w, convert.MsgConvertFailed, http.StatusInternalServerError)
		return
	}

	if wantsMarkdown(r) {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": markdown.ArtifactName(header.Filename),
		}))
		_, _ = io.WriteString(w, res.Markdown)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"markdown": res.Markdown})
}

// wantsMarkdown reports whether the client asked for the raw artifact.
func wantsMarkdown(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "text/markdown" {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

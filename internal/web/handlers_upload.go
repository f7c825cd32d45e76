package web

import (
	"errors"
	"net/http"
)

// handleUploadKids stages an uploaded kids file and dispatches it for
// background import. A 200 response means the file was accepted; the
// import outcome is reported in logs and metrics only.
func (s *Server) handleUploadKids(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	// Keep at most 10MB in memory; larger parts spill to temp files.
	if err := r.ParseMultipartForm(min(maxSize, 10<<20)); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, r, errFileTooLarge)
			return
		}
		respondError(w, r, errInvalidBody)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	job, err := s.service.ImportKids(ctx, file, header.Filename)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		JobID:    job.ID,
		FileName: job.FileName,
		Status:   "accepted",
	})
}

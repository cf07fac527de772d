package httpadapter

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (rt *Router) importCertificates(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.uploadLimit())
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		rt.writeError(w, r, multipartError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}

	uploads := make([]ports.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			rt.writeError(w, r, fmt.Errorf("open upload %s: %w", fh.Filename, err))
			return
		}
		files = append(files, f)
		uploads = append(uploads, ports.Upload{Filename: fh.Filename, Body: f})
	}

	result, err := rt.certificates.Import(r.Context(), uploads, ports.BatchOptions{
		CreateUnmatched: formBool(r, "create_unmatched"),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.batches != nil {
		rt.batches.Put(*result)
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		rt.writeReport(w, r, *result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) batchReport(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	if rt.batches == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch results are not retained"})
		return
	}
	result, ok := rt.batches.Get(batchID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found: " + batchID})
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		writeJSON(w, http.StatusOK, result)
		return
	}
	rt.writeReport(w, r, result)
}

func (rt *Router) writeReport(w http.ResponseWriter, r *http.Request, result domain.BatchResult) {
	if rt.reporter == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "report export is not configured"})
		return
	}
	data, err := rt.reporter.BatchReport(result)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="certificates-%s.xlsx"`, result.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) importLegacy(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.uploadLimit())
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	result, err := rt.legacy.ImportFile(r.Context(), fileHeader.Filename, file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) listUnmatched(w http.ResponseWriter, r *http.Request) {
	items, err := rt.linker.ListUnmatched(r.Context(), queryInt(r, "limit", defaultUnmatchedList))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (rt *Router) linkCertificate(w http.ResponseWriter, r *http.Request) {
	var req ports.LinkRequest
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.BlobID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "blob_id is required"})
		return
	}
	result, err := rt.linker.Link(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func multipartError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return domain.WrapError(domain.ErrInvalidInput, "parse multipart form", err)
}

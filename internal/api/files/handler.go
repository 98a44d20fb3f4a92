// Package files serves project attachments: upload, list, bulk delete and
// download.
package files

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
)

// FormField is the multipart field carrying uploaded files.
const FormField = "files"

// DefaultMaxBytes caps the total size of one upload request.
const DefaultMaxBytes = 50 << 20

// memoryLimit is how much of a multipart body is buffered before spilling
// to temporary files.
const memoryLimit = 8 << 20

// Handler handles project file endpoints.
type Handler struct {
	files    *collab.FileService
	maxBytes int64
}

// NewHandler creates a file handler. maxBytes <= 0 selects DefaultMaxBytes.
func NewHandler(files *collab.FileService, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Handler{files: files, maxBytes: maxBytes}
}

// DeleteRequest is the body of a bulk delete.
type DeleteRequest struct {
	FileNames []string `json:"fileNames"`
}

// Upload stores the files of a multipart request.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respond.Fail(w, http.StatusRequestEntityTooLarge, respond.CodeValidationFailed,
				"upload exceeds "+strconv.FormatInt(h.maxBytes, 10)+" bytes")
			return
		}
		respond.BadRequest(w, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[FormField]
	incoming := make([]collab.IncomingFile, 0, len(headers))
	for _, fh := range headers {
		incoming = append(incoming, collab.IncomingFile{
			Field: FormField,
			Name:  fh.Filename,
			Open:  opener(fh),
		})
	}

	projectID := middleware.GetProjectID(r.Context())
	result, err := h.files.Upload(r.Context(), projectID, incoming, p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if len(result.Failed) > 0 {
		log.WithFields(log.Fields{
			"project_id": projectID,
			"stored":     len(result.Stored),
			"failed":     len(result.Failed),
		}).Warn("upload partially failed")
	}
	respond.Created(w, result)
}

func opener(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

// List returns the project's recorded file names in upload order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	names, err := h.files.List(r.Context(), middleware.GetProjectID(r.Context()), p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, names)
}

// Delete removes the named files and reports which were deleted.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	if len(req.FileNames) == 0 {
		respond.Error(w, r, collab.NewValidationError("fileNames", "fileNames must list at least one file"))
		return
	}

	result, err := h.files.Delete(r.Context(), middleware.GetProjectID(r.Context()), req.FileNames, p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, result)
}

// Download streams one file as an attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "filename")

	f, info, err := h.files.Download(r.Context(), middleware.GetProjectID(r.Context()), name, p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/greenlight-eco/ecolens/pkg/ecolens"
)

// UploadHandler exposes the slot upload and status endpoints.
type UploadHandler struct {
	service  ecolens.Service
	urls     *ecolens.URLBuilder
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadHandler(service ecolens.Service, urls *ecolens.URLBuilder, maxBytes int64, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{
		service:  service,
		urls:     urls,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Routes returns the router for upload endpoints. The fixed-path variants
// predate the parameterized one and are kept for old clients.
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upload/{slot}", h.Upload)
	r.Post("/upload", h.uploadTo("uploads"))
	r.Post("/upload-product1", h.uploadTo("product1"))
	r.Post("/upload-product2", h.uploadTo("product2"))
	r.Get("/folder-status/{slot}", h.FolderStatus)
	return r
}

// UploadResponse is the JSON answer for an accepted upload
type UploadResponse struct {
	Message     string `json:"message"`
	FileURL     string `json:"fileUrl"`
	PublicURL   string `json:"publicUrl"`
	Folder      string `json:"folder"`
	ImageType   string `json:"imageType"`
	TotalImages int    `json:"totalImages"`
}

// FileRef is one slot file with its serving URLs
type FileRef struct {
	Filename  string `json:"filename"`
	LocalURL  string `json:"localUrl"`
	PublicURL string `json:"publicUrl"`
}

// FolderStatusResponse is the JSON answer for a slot status query
type FolderStatusResponse struct {
	Folder      string `json:"folder"`
	TotalImages int    `json:"totalImages"`
	FrontImages int    `json:"frontImages"`
	BackImages  int    `json:"backImages"`
	Files       struct {
		Front []FileRef `json:"front"`
		Back  []FileRef `json:"back"`
	} `json:"files"`
}

// Upload accepts a multipart image for the slot in the URL.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, chi.URLParam(r, "slot"))
}

func (h *UploadHandler) uploadTo(slot string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.handleUpload(w, r, slot)
	}
}

func (h *UploadHandler) handleUpload(w http.ResponseWriter, r *http.Request, slot string) {
	// Cap the whole request body; the per-file limit is enforced again by
	// the allocator using the reported part size.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+512*1024)

	file, header, err := r.FormFile("image")
	if err != nil {
		h.logger.Warn("upload rejected: no file", "slot", slot, "error", err)
		respondError(w, r, http.StatusBadRequest, "No file uploaded or invalid file type.", "")
		return
	}
	defer file.Close()

	result, err := h.service.Upload(r.Context(), ecolens.UploadRequest{
		Slot:     slot,
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Reader:   file,
	})
	if err != nil {
		h.logger.Warn("upload failed", "slot", slot, "file", header.Filename, "error", err)
		respondUploadError(w, r, err)
		return
	}

	h.logger.Info("upload accepted",
		"slot", result.Slot, "file", result.FileName, "role", result.Role,
		"size", result.Size, "evicted", result.Evicted)

	render.JSON(w, r, UploadResponse{
		Message:     fmt.Sprintf("Image uploaded successfully to %s as %s image!", result.Slot, result.Role),
		FileURL:     h.urls.LocalURL(result.Slot, result.FileName),
		PublicURL:   h.urls.PublicURL(result.Slot, result.FileName),
		Folder:      result.Slot,
		ImageType:   string(result.Role),
		TotalImages: result.TotalImages,
	})
}

// FolderStatus reports the slot's current front/back files. It is a pure
// read; calling it repeatedly with no uploads in between returns the same
// answer.
func (h *UploadHandler) FolderStatus(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")

	status, err := h.service.Status(r.Context(), slot)
	if err != nil {
		respondUploadError(w, r, err)
		return
	}

	resp := FolderStatusResponse{
		Folder:      status.Slot,
		TotalImages: len(status.All),
		FrontImages: len(status.Front),
		BackImages:  len(status.Back),
	}
	resp.Files.Front = h.fileRefs(status.Slot, status.Front)
	resp.Files.Back = h.fileRefs(status.Slot, status.Back)

	render.JSON(w, r, resp)
}

func (h *UploadHandler) fileRefs(slot string, entries []ecolens.Entry) []FileRef {
	refs := make([]FileRef, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, FileRef{
			Filename:  e.Name,
			LocalURL:  h.urls.LocalURL(slot, e.Name),
			PublicURL: h.urls.PublicURL(slot, e.Name),
		})
	}
	return refs
}

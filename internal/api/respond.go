package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/render"

	"github.com/greenlight-eco/ecolens/pkg/ecolens"
	"github.com/greenlight-eco/ecolens/pkg/mlclient"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg, details string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Success: false, Error: msg, Details: details})
}

// respondUploadError maps allocator errors onto HTTP statuses.
func respondUploadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ecolens.ErrInvalidSlot):
		respondError(w, r, http.StatusBadRequest,
			"Invalid folder specified. Use: uploads, product1, or product2", "")
	case errors.Is(err, ecolens.ErrInvalidImageType):
		respondError(w, r, http.StatusBadRequest, ecolens.ErrInvalidImageType.Error(), "")
	case errors.Is(err, ecolens.ErrFileTooLarge):
		respondError(w, r, http.StatusBadRequest, ecolens.ErrFileTooLarge.Error(), "")
	default:
		respondError(w, r, http.StatusInternalServerError, "Upload failed", err.Error())
	}
}

// respondMLError maps ML client errors onto HTTP statuses: transport
// failures become 503, upstream HTTP errors 502, non-JSON bodies 500.
func respondMLError(w http.ResponseWriter, r *http.Request, err error) {
	var ue *mlclient.UpstreamError
	var urlErr *url.Error

	switch {
	case errors.As(err, &ue):
		respondError(w, r, http.StatusBadGateway, "Upstream error", ue.Body)
	case errors.Is(err, mlclient.ErrNonJSON):
		respondError(w, r, http.StatusInternalServerError, "ML server returned non-JSON response", err.Error())
	case errors.As(err, &urlErr):
		respondError(w, r, http.StatusServiceUnavailable, "Cannot connect to ML server", "ML service is not available")
	default:
		respondError(w, r, http.StatusInternalServerError, "Proxy request failed", err.Error())
	}
}

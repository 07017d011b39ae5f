package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/greenlight-eco/ecolens/pkg/ecolens"
	"github.com/greenlight-eco/ecolens/pkg/ecolens/session"
	"github.com/greenlight-eco/ecolens/pkg/mlclient"
)

var barcodePattern = regexp.MustCompile(`^\d{8,}$`)

// EcoHandler exposes the label-extraction, scoring and lookup endpoints
// backed by the external ML service.
type EcoHandler struct {
	service  ecolens.Service
	ml       *mlclient.Client
	sessions session.Store
	urls     *ecolens.URLBuilder
	logger   *slog.Logger
}

func NewEcoHandler(service ecolens.Service, ml *mlclient.Client, sessions session.Store, urls *ecolens.URLBuilder, logger *slog.Logger) *EcoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EcoHandler{
		service:  service,
		ml:       ml,
		sessions: sessions,
		urls:     urls,
		logger:   logger,
	}
}

// Routes returns the router for the ML-backed endpoints
func (h *EcoHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/extract-labels", h.ExtractLabels)
	r.Post("/analyze-product", h.AnalyzeProduct)
	r.Post("/get-eco-score-proxy", h.EcoScoreProxy)
	r.Post("/get-alternatives", h.Alternatives)
	r.Post("/compare-products", h.CompareProducts)
	r.Post("/barcodes", h.SaveBarcode)
	r.Post("/test-ml-connection", h.TestMLConnection)
	r.Get("/get_url", h.LookupURL)
	r.Get("/get_barcode", h.LookupBarcode)
	return r
}

type extractLabelsRequest struct {
	Folder    string `json:"folder"`
	SessionID string `json:"sessionId"`
}

type imageURLs struct {
	Front string `json:"front,omitempty"`
	Back  string `json:"back,omitempty"`
}

type extractLabelsResponse struct {
	Success       bool            `json:"success"`
	SessionID     string          `json:"sessionId"`
	Folder        string          `json:"folder"`
	Images        imageURLs       `json:"images"`
	ExtractedData json.RawMessage `json:"extractedData"`
	Message       string          `json:"message"`
}

// ExtractLabels builds public URLs for the slot's current images, forwards
// them to the ML extraction endpoint and caches the result under a session
// ID for later reuse.
func (h *EcoHandler) ExtractLabels(w http.ResponseWriter, r *http.Request) {
	var req extractLabelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Folder == "" {
		req.Folder = "uploads"
	}

	rec, labels, err := h.extract(r, req.Folder, req.SessionID)
	if err != nil {
		h.extractError(w, r, req.Folder, err)
		return
	}

	h.logger.Info("label extraction completed",
		"slot", req.Folder, "session", rec.ID,
		"product", labels.ProductName, "brand", labels.Brand)

	render.JSON(w, r, extractLabelsResponse{
		Success:       true,
		SessionID:     rec.ID,
		Folder:        req.Folder,
		Images:        imageURLs{Front: rec.FrontURL, Back: rec.BackURL},
		ExtractedData: rec.ExtractedData,
		Message:       "Label extraction completed successfully",
	})
}

// extract runs one extraction pass and persists the session record.
func (h *EcoHandler) extract(r *http.Request, folder, sessionID string) (*session.Record, *mlclient.ExtractedLabels, error) {
	ctx := r.Context()

	status, err := h.service.Status(ctx, folder)
	if err != nil {
		return nil, nil, err
	}
	if len(status.Front) == 0 && len(status.Back) == 0 {
		return nil, nil, ecolens.ErrNoImages
	}

	var frontURL, backURL string
	if e, ok := status.FrontEntry(); ok {
		frontURL = h.urls.PublicURL(folder, e.Name)
	}
	if e, ok := status.BackEntry(); ok {
		backURL = h.urls.PublicURL(folder, e.Name)
	}

	start := time.Now()
	labels, err := h.ml.ExtractLabels(ctx, frontURL, backURL)
	if err != nil {
		return nil, nil, err
	}

	if sessionID == "" || !session.ValidID(sessionID) {
		sessionID = session.NewID()
	}
	rec := &session.Record{
		ID:               sessionID,
		Slot:             folder,
		CreatedAt:        time.Now().UTC(),
		FrontURL:         frontURL,
		BackURL:          backURL,
		ExtractedData:    labels.Raw,
		MLDurationMillis: time.Since(start).Milliseconds(),
	}
	if err := h.sessions.Save(ctx, rec); err != nil {
		// A failed session save degrades reuse, not the extraction itself.
		h.logger.Warn("failed to save session", "session", sessionID, "error", err)
	}

	return rec, labels, nil
}

func (h *EcoHandler) extractError(w http.ResponseWriter, r *http.Request, folder string, err error) {
	switch {
	case errors.Is(err, ecolens.ErrInvalidSlot):
		respondError(w, r, http.StatusBadRequest,
			"Invalid folder specified. Use: uploads, product1, or product2", "")
	case errors.Is(err, ecolens.ErrNoImages):
		respondError(w, r, http.StatusBadRequest, "No images found in the specified folder", "")
	default:
		h.logger.Error("label extraction failed", "slot", folder, "error", err)
		respondMLError(w, r, err)
	}
}

type analyzeProductRequest struct {
	Folder                string           `json:"folder"`
	AdditionalProductInfo mlclient.Product `json:"additionalProductInfo"`
}

type analyzeProductResponse struct {
	Success         bool            `json:"success"`
	Folder          string          `json:"folder"`
	Images          imageURLs       `json:"images"`
	ExtractedLabels json.RawMessage `json:"extractedLabels"`
	EcoScoreData    json.RawMessage `json:"ecoScoreData"`
	Message         string          `json:"message"`
}

// AnalyzeProduct chains extraction and eco-scoring. A failed eco-score call
// degrades to a labels-only success rather than failing the request.
func (h *EcoHandler) AnalyzeProduct(w http.ResponseWriter, r *http.Request) {
	var req analyzeProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Folder == "" {
		req.Folder = "uploads"
	}

	rec, labels, err := h.extract(r, req.Folder, "")
	if err != nil {
		h.extractError(w, r, req.Folder, err)
		return
	}

	product := productFromLabels(labels, req.AdditionalProductInfo)
	ecoScore, err := h.ml.EcoScore(r.Context(), product)
	if err != nil {
		h.logger.Warn("eco-score failed, returning labels only", "slot", req.Folder, "error", err)
		render.JSON(w, r, analyzeProductResponse{
			Success:         true,
			Folder:          req.Folder,
			Images:          imageURLs{Front: rec.FrontURL, Back: rec.BackURL},
			ExtractedLabels: rec.ExtractedData,
			Message:         "Label extraction completed successfully (eco-score analysis failed)",
		})
		return
	}

	render.JSON(w, r, analyzeProductResponse{
		Success:         true,
		Folder:          req.Folder,
		Images:          imageURLs{Front: rec.FrontURL, Back: rec.BackURL},
		ExtractedLabels: rec.ExtractedData,
		EcoScoreData:    ecoScore,
		Message:         "Complete product analysis completed successfully",
	})
}

// productFromLabels merges extracted label fields with caller-supplied
// product info, filling the gaps with fixed defaults.
func productFromLabels(labels *mlclient.ExtractedLabels, extra mlclient.Product) mlclient.Product {
	p := extra
	if labels.ProductName != "" {
		p.ProductName = labels.ProductName
	}
	if p.ProductName == "" {
		p.ProductName = "Unknown Product"
	}
	if labels.Brand != "" {
		p.Brand = labels.Brand
	}
	if p.Brand == "" {
		p.Brand = "Unknown Brand"
	}
	if p.Category == "" {
		p.Category = "General"
	}
	if p.Weight == "" {
		p.Weight = "250ml"
	}
	if p.PackagingType == "" {
		p.PackagingType = "Plastic"
	}
	if labels.Ingredients != "" {
		p.IngredientList = labels.Ingredients
	}
	if p.Latitude == 0 && p.Longitude == 0 {
		p.Latitude = 12.9716
		p.Longitude = 77.5946
	}
	if p.UsageFrequency == "" {
		p.UsageFrequency = "daily"
	}
	if labels.ManufacturerState != "" {
		p.ManufacturingLoc = labels.ManufacturerState
	}
	if p.ManufacturingLoc == "" {
		p.ManufacturingLoc = "Mumbai"
	}
	return p
}

// EcoScoreProxy forwards an eco-score request to the ML service unchanged.
func (h *EcoHandler) EcoScoreProxy(w http.ResponseWriter, r *http.Request) {
	var product mlclient.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	data, err := h.ml.EcoScore(r.Context(), product)
	if err != nil {
		h.logger.Error("eco-score proxy failed", "error", err)
		respondMLError(w, r, err)
		return
	}

	render.JSON(w, r, json.RawMessage(data))
}

type alternativesRequest struct {
	SessionID        string `json:"sessionId"`
	UseExtractedData bool   `json:"useExtractedData"`
	mlclient.Product
}

type alternativesResponse struct {
	Success      bool            `json:"success"`
	SessionID    string          `json:"sessionId,omitempty"`
	Alternatives json.RawMessage `json:"alternatives"`
	Message      string          `json:"message"`
}

// Alternatives asks the ML service for alternative products, sourced either
// from a previous extraction session or from manual product fields.
func (h *EcoHandler) Alternatives(w http.ResponseWriter, r *http.Request) {
	var req alternativesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	num := 3
	if v := r.URL.Query().Get("num_alternatives"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			num = n
		}
	}

	product := req.Product
	if req.UseExtractedData && req.SessionID != "" {
		rec, err := h.sessions.Load(r.Context(), req.SessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				respondError(w, r, http.StatusNotFound, "Session not found", req.SessionID)
				return
			}
			respondError(w, r, http.StatusInternalServerError, "Failed to load session", err.Error())
			return
		}
		var labels mlclient.ExtractedLabels
		if err := json.Unmarshal(rec.ExtractedData, &labels); err == nil {
			product = productFromLabels(&labels, req.Product)
		}
	} else {
		var missing []string
		if product.ProductName == "" {
			missing = append(missing, "product_name")
		}
		if product.Brand == "" {
			missing = append(missing, "brand")
		}
		if product.Category == "" {
			missing = append(missing, "category")
		}
		if len(missing) > 0 {
			respondError(w, r, http.StatusBadRequest,
				"Missing required fields: "+strings.Join(missing, ", "), "")
			return
		}
	}

	data, err := h.ml.Alternatives(r.Context(), product, num)
	if err != nil {
		h.logger.Error("alternatives lookup failed", "error", err)
		respondMLError(w, r, err)
		return
	}

	render.JSON(w, r, alternativesResponse{
		Success:      true,
		SessionID:    req.SessionID,
		Alternatives: data,
		Message:      "Alternatives retrieved successfully",
	})
}

type compareProductsRequest struct {
	Product1 *mlclient.Product `json:"product1"`
	Product2 *mlclient.Product `json:"product2"`
}

// CompareProducts forwards two products to the ML comparison endpoint.
func (h *EcoHandler) CompareProducts(w http.ResponseWriter, r *http.Request) {
	var req compareProductsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Product1 == nil || req.Product2 == nil {
		respondError(w, r, http.StatusBadRequest, "Both product1 and product2 are required", "")
		return
	}

	data, err := h.ml.CompareProducts(r.Context(), *req.Product1, *req.Product2)
	if err != nil {
		h.logger.Error("product comparison failed", "error", err)
		respondMLError(w, r, err)
		return
	}

	render.JSON(w, r, json.RawMessage(data))
}

type barcodeRequest struct {
	Barcode string `json:"barcode"`
}

// SaveBarcode validates a scanned barcode.
func (h *EcoHandler) SaveBarcode(w http.ResponseWriter, r *http.Request) {
	var req barcodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if !barcodePattern.MatchString(req.Barcode) {
		respondError(w, r, http.StatusBadRequest, "Invalid barcode format", "")
		return
	}

	render.JSON(w, r, map[string]any{
		"success": true,
		"barcode": req.Barcode,
		"message": "Barcode saved successfully",
	})
}

// TestMLConnection probes the ML service.
func (h *EcoHandler) TestMLConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.ml.Ping(r.Context()); err != nil {
		respondMLError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"success": true,
		"message": "ML service reachable",
	})
}

// LookupURL proxies a product-page URL lookup to the ML service.
func (h *EcoHandler) LookupURL(w http.ResponseWriter, r *http.Request) {
	inputURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if inputURL == "" {
		respondError(w, r, http.StatusBadRequest, "Missing url query param", "")
		return
	}

	data, err := h.ml.LookupURL(r.Context(), inputURL)
	if err != nil {
		respondMLError(w, r, err)
		return
	}
	render.JSON(w, r, json.RawMessage(data))
}

var nonDigits = regexp.MustCompile(`\D+`)

// LookupBarcode proxies a barcode lookup to the ML service.
func (h *EcoHandler) LookupBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := nonDigits.ReplaceAllString(r.URL.Query().Get("barcode"), "")
	if barcode == "" {
		respondError(w, r, http.StatusBadRequest, "Missing barcode query param", "")
		return
	}

	data, err := h.ml.LookupBarcode(r.Context(), barcode)
	if err != nil {
		respondMLError(w, r, err)
		return
	}
	render.JSON(w, r, json.RawMessage(data))
}

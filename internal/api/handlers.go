package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/history"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/tracker"
)

const maxListLimit = 100

type Scraper interface {
	ScrapeProduct(ctx context.Context, rawURL string) models.ScrapeResult
	ScrapePrice(ctx context.Context, rawURL string) *float64
}

type Tracker interface {
	Track(ctx context.Context, rawURL string) (*tracker.Outcome, error)
	AddSubscriber(ctx context.Context, id uuid.UUID, email string) (*models.TrackedProduct, bool, error)
	Product(ctx context.Context, id uuid.UUID) (*models.TrackedProduct, error)
	Products(ctx context.Context, filter database.ListFilter) ([]*models.TrackedProduct, error)
}

// OutboxStats reports relay backlog for the health check.
type OutboxStats interface {
	PendingCount(ctx context.Context) (int64, error)
	DeadLetterCount(ctx context.Context) (int64, error)
}

type Handlers struct {
	scraper Scraper
	tracker Tracker
	outbox  OutboxStats
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandlers wires the handlers. tracker and outbox may be nil, in which
// case the product routes answer 503 and health skips the outbox.
func NewHandlers(scraper Scraper, tracker Tracker, outbox OutboxStats, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper: scraper,
		tracker: tracker,
		outbox:  outbox,
		logger:  logger.With("component", "api"),
		now:     time.Now,
	}
}

// ScrapeRequest is the body of the scrape and track endpoints.
type ScrapeRequest struct {
	URL string `json:"url"`
}

type PriceResponse struct {
	URL   string   `json:"url"`
	Price *float64 `json:"price"`
}

type SubscriberRequest struct {
	Email string `json:"email"`
}

type SubscriberResponse struct {
	Product *models.TrackedProduct `json:"product"`
	Added   bool                   `json:"added"`
}

// MergeRequest folds Price into History. ObservedAt defaults to now.
type MergeRequest struct {
	History    []models.PricePoint `json:"history"`
	Price      *float64            `json:"price"`
	ObservedAt *time.Time          `json:"observed_at"`
}

// ScrapeProduct runs a one-off scrape without storing anything. Failures are
// answered with the status carried by the error.
func (h *Handlers) ScrapeProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeScrapeRequest(w, r)
	if !ok {
		return
	}

	result := h.scraper.ScrapeProduct(r.Context(), req.URL)
	h.respondJSON(w, resultStatus(result), result)
}

func (h *Handlers) ScrapePrice(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeScrapeRequest(w, r)
	if !ok {
		return
	}

	price := h.scraper.ScrapePrice(r.Context(), req.URL)
	h.respondJSON(w, http.StatusOK, PriceResponse{URL: req.URL, Price: price})
}

// TrackProduct scrapes the URL and stores the merged record.
func (h *Handlers) TrackProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}
	req, ok := h.decodeScrapeRequest(w, r)
	if !ok {
		return
	}

	outcome, err := h.tracker.Track(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("failed to track product", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to store product")
		return
	}
	if !outcome.Result.Success {
		h.respondJSON(w, resultStatus(outcome.Result), outcome)
		return
	}
	h.respondJSON(w, http.StatusOK, outcome)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	p, err := h.tracker.Product(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, "failed to get product", err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

// ListProducts supports ?site=, ?limit= and ?exclude=<id>. Site plus exclude
// lists products similar to the excluded one.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	var filter database.ListFilter
	q := r.URL.Query()
	if site := strings.ToLower(q.Get("site")); site != "" {
		filter.Site = models.Site(site)
		if !filter.Site.Valid() {
			h.respondError(w, http.StatusBadRequest, "unknown site")
			return
		}
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxListLimit)
	}
	if exclude := q.Get("exclude"); exclude != "" {
		id, err := uuid.Parse(exclude)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid product id")
			return
		}
		filter.ExcludeID = id
	}

	products, err := h.tracker.Products(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []*models.TrackedProduct{}
	}
	h.respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) AddSubscriber(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req SubscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, added, err := h.tracker.AddSubscriber(r.Context(), id, req.Email)
	if err != nil {
		if errors.Is(err, tracker.ErrInvalidEmail) {
			h.respondError(w, http.StatusBadRequest, "invalid email address")
			return
		}
		h.respondStoreError(w, "failed to add subscriber", err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	h.respondJSON(w, status, SubscriberResponse{Product: p, Added: added})
}

// MergeHistory is the pure merge over a caller supplied history.
func (h *Handlers) MergeHistory(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Price == nil {
		h.respondError(w, http.StatusBadRequest, "price is required")
		return
	}

	observedAt := h.now()
	if req.ObservedAt != nil {
		observedAt = *req.ObservedAt
	}
	result, err := history.Merge(req.History, *req.Price, observedAt)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// Health reports ok unless the outbox backlog says the relay is stuck.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if h.outbox != nil {
		pending, perr := h.outbox.PendingCount(r.Context())
		deadLetter, derr := h.outbox.DeadLetterCount(r.Context())
		if perr != nil || derr != nil {
			h.logger.Error("failed to read outbox counts", "error", errors.Join(perr, derr))
			h.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "error",
				"message": "database unavailable",
			})
			return
		}

		health["outbox"] = map[string]int64{
			"pending":     pending,
			"dead_letter": deadLetter,
		}
		if pending > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if deadLetter > 100 {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) decodeScrapeRequest(w http.ResponseWriter, r *http.Request) (ScrapeRequest, bool) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if strings.TrimSpace(req.URL) == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return req, false
	}
	return req, true
}

func (h *Handlers) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid product id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) requireTracker(w http.ResponseWriter) bool {
	if h.tracker == nil {
		h.respondError(w, http.StatusServiceUnavailable, "tracking is not configured")
		return false
	}
	return true
}

func (h *Handlers) respondStoreError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, tracker.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	h.logger.Error(message, "error", err)
	h.respondError(w, http.StatusInternalServerError, message)
}

func resultStatus(result models.ScrapeResult) int {
	if result.Success || result.Error == nil {
		return http.StatusOK
	}
	return result.Error.Status
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"catalog-cart-service/internal/cart"
	"catalog-cart-service/internal/catalog"
	"catalog-cart-service/internal/domain"
	"catalog-cart-service/internal/store"
)

const (
	ServiceName           = "CatalogCartService"
	defaultRequestTimeout = 60 * time.Second
)

// CatalogController is the catalog view driven by the API.
type CatalogController interface {
	State() catalog.State
	SetSearchOrSort(query string, sort domain.SortOrder)
	SetPageSize(n int) bool
	GoToNextPage() bool
	GoToPreviousPage() bool
	GoToPage(n int) bool
	Refresh() bool
	Subscribe(l catalog.Listener) func()
}

// CartService is the cart as seen by the API.
type CartService interface {
	Add(ctx context.Context, item domain.Item) (bool, error)
	Remove(ctx context.Context, itemID int64) error
	Contains(itemID int64) bool
	List() []domain.CartEntry
	Subscribe(l cart.Listener) func()
}

// ScrollObserver receives viewport positions from the client.
type ScrollObserver interface {
	OnScrollPositionChanged(scrollOffset, viewportHeight, contentHeight float64)
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	catalog  CatalogController
	cart     CartService
	scroll   ScrollObserver
	health   store.Pinger
	logger   *zap.Logger
	validate *validator.Validate

	closing   chan struct{}
	closeOnce sync.Once
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(cc CatalogController, cs CartService, so ScrollObserver, health store.Pinger, logger *zap.Logger) *HTTPHandler {
	v := validator.New()
	_ = v.RegisterValidation("sortorder", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseSortOrder(fl.Field().String())
		return err == nil
	})
	return &HTTPHandler{
		catalog:  cc,
		cart:     cs,
		scroll:   so,
		health:   health,
		logger:   logger.Named("http"),
		validate: v,
		closing:  make(chan struct{}),
	}
}

// CloseStreams ends every open event stream. http.Server.Shutdown does not
// cancel in-flight requests, so register it with RegisterOnShutdown.
func (h *HTTPHandler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // Avoid writing empty body for 204 No Content
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.logger.Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// decodeAndValidate reads a JSON body into dst and runs the struct tags.
// It writes the 400 response itself and reports whether the handler should
// continue.
func (h *HTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

func parseItemID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// --- Catalog Handlers ---

// NavigationResponse answers every catalog command. Applied is false when
// the command was a no-op, which is not an error.
type NavigationResponse struct {
	Applied bool          `json:"applied"`
	State   catalog.State `json:"state"`
}

// SearchInput defines the expected input for changing the search or sort.
type SearchInput struct {
	Q    string `json:"q" validate:"max=200"`
	Sort string `json:"sort" validate:"sortorder"`
}

// PageSizeInput defines the expected input for changing the page size.
type PageSizeInput struct {
	Limit int `json:"limit" validate:"required,gt=0"`
}

// ScrollInput is one viewport notification.
type ScrollInput struct {
	ScrollOffset   float64 `json:"scroll_offset" validate:"gte=0"`
	ViewportHeight float64 `json:"viewport_height" validate:"gt=0"`
	ContentHeight  float64 `json:"content_height" validate:"gte=0"`
}

func (h *HTTPHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, h.catalog.State())
}

func (h *HTTPHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	var input SearchInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	sort, _ := domain.ParseSortOrder(input.Sort) // checked by the sortorder tag
	h.catalog.SetSearchOrSort(input.Q, sort)
	h.respondWithJSON(w, http.StatusOK, NavigationResponse{Applied: true, State: h.catalog.State()})
}

func (h *HTTPHandler) SetPageSize(w http.ResponseWriter, r *http.Request) {
	var input PageSizeInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	h.navigation(w, h.catalog.SetPageSize(input.Limit))
}

func (h *HTTPHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.navigation(w, h.catalog.Refresh())
}

func (h *HTTPHandler) NextPage(w http.ResponseWriter, r *http.Request) {
	h.navigation(w, h.catalog.GoToNextPage())
}

func (h *HTTPHandler) PreviousPage(w http.ResponseWriter, r *http.Request) {
	h.navigation(w, h.catalog.GoToPreviousPage())
}

func (h *HTTPHandler) GoToPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid page format")
		return
	}
	h.navigation(w, h.catalog.GoToPage(page))
}

func (h *HTTPHandler) navigation(w http.ResponseWriter, applied bool) {
	h.respondWithJSON(w, http.StatusOK, NavigationResponse{Applied: applied, State: h.catalog.State()})
}

func (h *HTTPHandler) Scroll(w http.ResponseWriter, r *http.Request) {
	var input ScrollInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	h.scroll.OnScrollPositionChanged(input.ScrollOffset, input.ViewportHeight, input.ContentHeight)
	w.WriteHeader(http.StatusAccepted)
}

// --- Cart Handlers ---

// CartItemInput defines the expected input for adding an item to the cart.
type CartItemInput struct {
	ID        int64   `json:"id" validate:"required,gt=0"`
	Title     string  `json:"title" validate:"required,max=255"`
	Price     float64 `json:"price" validate:"gte=0"`
	Thumbnail string  `json:"thumbnail" validate:"omitempty,url,max=2048"`
}

// CartResponse lists the cart in insertion order.
type CartResponse struct {
	Items []domain.CartEntry `json:"items"`
	Count int                `json:"count"`
}

// AddToCartResponse reports whether the item was new to the cart.
type AddToCartResponse struct {
	Added bool             `json:"added"`
	Item  domain.CartEntry `json:"item"`
}

// ContainsResponse answers the membership query.
type ContainsResponse struct {
	ID     int64 `json:"id"`
	InCart bool  `json:"in_cart"`
}

func (h *HTTPHandler) ListCart(w http.ResponseWriter, r *http.Request) {
	items := h.cart.List()
	if items == nil {
		items = []domain.CartEntry{}
	}
	h.respondWithJSON(w, http.StatusOK, CartResponse{Items: items, Count: len(items)})
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var input CartItemInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	item := domain.Item{
		ID:        input.ID,
		Title:     input.Title,
		Price:     input.Price,
		Thumbnail: input.Thumbnail,
	}
	added, err := h.cart.Add(r.Context(), item)
	if err != nil {
		h.logger.Error("cart add failed", zap.Int64("item_id", item.ID), zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to add item to cart")
		return
	}

	code := http.StatusOK
	if added {
		code = http.StatusCreated
	}
	h.respondWithJSON(w, code, AddToCartResponse{Added: added, Item: item})
}

func (h *HTTPHandler) CartContains(w http.ResponseWriter, r *http.Request) {
	id, ok := parseItemID(r)
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid item ID format")
		return
	}
	h.respondWithJSON(w, http.StatusOK, ContainsResponse{ID: id, InCart: h.cart.Contains(id)})
}

func (h *HTTPHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := parseItemID(r)
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid item ID format")
		return
	}
	if err := h.cart.Remove(r.Context(), id); err != nil {
		h.logger.Error("cart remove failed", zap.Int64("item_id", id), zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to remove item from cart")
		return
	}
	h.respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Health ---

// HealthResponse reports liveness and whether the cart store answers.
type HealthResponse struct {
	Status      string `json:"status"`
	ServiceName string `json:"serviceName"`
	Timestamp   string `json:"timestamp"`
	CartStore   string `json:"cart_store"`
}

func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if err := h.health.Ping(ctx); err != nil {
		storeStatus = "unhealthy"
		h.logger.Warn("health check store ping failed", zap.Error(err))
	}

	// Always 200, the payload carries the detailed status.
	h.respondWithJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		ServiceName: ServiceName,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		CartStore:   storeStatus,
	})
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		// The event stream is long-lived and stays outside the request timeout.
		r.Get("/events", h.Events)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultRequestTimeout))

			r.Get("/healthz", h.Healthz)

			r.Route("/catalog", func(r chi.Router) {
				r.Get("/", h.GetCatalog)
				r.Put("/query", h.SetSearch)
				r.Put("/page-size", h.SetPageSize)
				r.Put("/page/{page}", h.GoToPage)
				r.Post("/refresh", h.Refresh)
				r.Post("/next", h.NextPage)
				r.Post("/previous", h.PreviousPage)
				r.Post("/scroll", h.Scroll)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.ListCart)
				r.Post("/", h.AddToCart)
				r.Route("/{itemId}", func(r chi.Router) {
					r.Get("/", h.CartContains)
					r.Delete("/", h.RemoveFromCart)
				})
			})
		})
	})
}

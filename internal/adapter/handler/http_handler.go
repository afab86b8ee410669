package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/core/service"
)

const idempotencyHeader = "Idempotency-Key"

type HTTPHandler struct {
	saleService *service.SaleService
	catalog     *service.CatalogService
	logger      *slog.Logger
}

type LineItemHTTPRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CommitSaleHTTPRequest struct {
	CustomerID  string                `json:"customer_id"`
	Items       []LineItemHTTPRequest `json:"items"`
	RequestedAt *time.Time            `json:"requested_at,omitempty"`
	Status      string                `json:"status,omitempty"`
	RequestKey  string                `json:"request_key,omitempty"`
}

type SaleItemResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	ProductSKU  string `json:"product_sku,omitempty"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	Subtotal    string `json:"subtotal"`
}

type SaleResponse struct {
	ID            string             `json:"id"`
	CustomerID    string             `json:"customer_id"`
	CustomerName  string             `json:"customer_name,omitempty"`
	CustomerEmail string             `json:"customer_email,omitempty"`
	Date          time.Time          `json:"date"`
	Items         []SaleItemResponse `json:"items"`
	Total         string             `json:"total"`
	Status        string             `json:"status"`
	RequestKey    string             `json:"request_key,omitempty"`
}

// NewHTTPHandler builds the REST API. catalog may be nil, in which case only
// the sale commit and health routes are served.
func NewHTTPHandler(saleService *service.SaleService, catalog *service.CatalogService, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{saleService: saleService, catalog: catalog, logger: logger}
}

// Routes returns the chi router. A nil limiter disables rate limiting.
func (h *HTTPHandler) Routes(limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(h.logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}

		r.Post("/sales", h.CommitSale)
		if h.catalog == nil {
			return
		}
		r.Get("/sales", h.ListSales)
		r.Get("/sales/{id}", h.GetSale)
		r.Post("/sales/{id}/cancel", h.CancelSale)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, newProblem(r, http.StatusNotFound, "no such route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, newProblem(r, http.StatusMethodNotAllowed, "The HTTP method is not supported for this endpoint"))
	})
	return r
}

func (h *HTTPHandler) CommitSale(w http.ResponseWriter, r *http.Request) {
	var req CommitSaleHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && strings.HasSuffix(typeErr.Field, "quantity") {
			p := newProblem(r, http.StatusBadRequest, "quantity must be a positive integer")
			p.Kind = string(service.KindInvalidQuantity)
			writeProblem(w, p)
			return
		}
		writeBadRequest(w, r, "invalid request body")
		return
	}

	commit := service.CommitRequest{
		CustomerID: req.CustomerID,
		Status:     domain.SaleStatus(req.Status),
		RequestKey: req.RequestKey,
		Items:      make([]service.LineRequest, 0, len(req.Items)),
	}
	if key := r.Header.Get(idempotencyHeader); key != "" {
		commit.RequestKey = key
	}
	if req.RequestedAt != nil {
		commit.RequestedAt = *req.RequestedAt
	}
	for _, item := range req.Items {
		commit.Items = append(commit.Items, service.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	sale, err := h.saleService.CommitSale(r.Context(), commit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleResponse(sale))
}

func (h *HTTPHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.catalog.ListSales(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	out := make([]SaleResponse, 0, len(sales))
	for i := range sales {
		out = append(out, toSaleResponse(&sales[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.catalog.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *HTTPHandler) CancelSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.catalog.CancelSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toSaleResponse(s *domain.Sale) SaleResponse {
	out := SaleResponse{
		ID:            s.ID,
		CustomerID:    s.CustomerID,
		CustomerName:  s.CustomerName,
		CustomerEmail: s.CustomerEmail,
		Date:          s.Date,
		Total:         s.Total.StringFixed(2),
		Status:        string(s.Status),
		RequestKey:    s.RequestKey,
		Items:         make([]SaleItemResponse, 0, len(s.Items)),
	}
	for _, item := range s.Items {
		out.Items = append(out.Items, SaleItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSKU:  item.ProductSKU,
			Quantity:    item.Quantity,
			Price:       item.Price.StringFixed(2),
			Subtotal:    item.Subtotal().StringFixed(2),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

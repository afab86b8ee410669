package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/rl1809/shop-sales/internal/core/service"
)

// Problem is an RFC 7807 problem document. Sale failures add the kind and,
// where it applies, the offending product and quantities.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Kind      string `json:"kind,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Requested *int   `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
	Field     string `json:"field,omitempty"`
}

func newProblem(r *http.Request, status int, detail string) *Problem {
	return &Problem{
		Type:      fmt.Sprintf("https://shop-sales.dev/errors/%d", status),
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    detail,
		Instance:  r.URL.Path,
		RequestID: middleware.GetReqID(r.Context()),
	}
}

func writeProblem(w http.ResponseWriter, p *Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, newProblem(r, http.StatusBadRequest, detail))
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	writeProblem(w, newProblem(r, http.StatusTooManyRequests, "Rate limit exceeded. Retry after the specified interval."))
}

// writeServiceError maps service errors to problem documents. Unknown errors
// are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var se *service.SaleError
	if errors.As(err, &se) {
		writeProblem(w, saleProblem(r, se))
		return
	}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		p := newProblem(r, http.StatusBadRequest, verr.Reason)
		p.Kind = "validation"
		p.Field = verr.Field
		writeProblem(w, p)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrSaleNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrSKUImmutable):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrDuplicateSKU),
		errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, service.ErrProductInUse),
		errors.Is(err, service.ErrCustomerInUse),
		errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "internal server error", "path", r.URL.Path, "error", err)
		writeProblem(w, newProblem(r, status, "An unexpected error occurred. Please try again later."))
		return
	}
	writeProblem(w, newProblem(r, status, err.Error()))
}

func saleProblem(r *http.Request, se *service.SaleError) *Problem {
	status := http.StatusInternalServerError
	detail := se.Error()
	switch se.Kind {
	case service.KindCustomerNotFound, service.KindProductNotFound:
		status = http.StatusNotFound
	case service.KindEmptyOrder, service.KindInvalidQuantity, service.KindInvalidStatus:
		status = http.StatusBadRequest
	case service.KindInsufficientStock, service.KindRequestKeyConflict:
		status = http.StatusConflict
	case service.KindStorageAborted:
		status = http.StatusServiceUnavailable
		detail = "The sale could not be stored. Nothing was written; the request can be retried."
	}

	p := newProblem(r, status, detail)
	p.Kind = string(se.Kind)
	p.ProductID = se.ProductID
	if se.Kind == service.KindInsufficientStock {
		requested, available := se.Requested, se.Available
		p.Requested = &requested
		p.Available = &available
	}
	return p
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

type CommitRequest struct {
	CustomerID  string
	Items       []LineRequest
	RequestedAt time.Time

	// Status defaults to completed. Only pending and completed are accepted.
	Status domain.SaleStatus

	// RequestKey, when set, makes resubmission return the sale already
	// committed under the same key instead of creating another.
	RequestKey string
}

type SaleService struct {
	store   port.EntityStore
	pricing *PricingResolver
	guard   *StockGuard
	metrics *commitMetrics
	meter   metric.Meter
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

type Option func(*SaleService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *SaleService) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *SaleService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *SaleService) { s.newID = newID }
}

// WithMeter overrides the global OpenTelemetry meter. NewSaleService fails
// if the instruments cannot be created on it.
func WithMeter(meter metric.Meter) Option {
	return func(s *SaleService) { s.meter = meter }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *SaleService) { s.tracer = tp.Tracer(instrumentationName) }
}

func NewSaleService(store port.EntityStore, opts ...Option) (*SaleService, error) {
	s := &SaleService{
		store:   store,
		pricing: NewPricingResolver(store),
		guard:   NewStockGuard(),
		tracer:  otel.Tracer(instrumentationName),
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	m, err := newCommitMetrics(s.meter)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	s.metrics = m
	return s, nil
}

// CommitSale turns a requested order into a persisted sale with frozen item
// prices and decremented stock. Either all of it is stored or none of it.
func (s *SaleService) CommitSale(ctx context.Context, req CommitRequest) (*domain.Sale, error) {
	ctx, span := s.tracer.Start(ctx, "SaleService.CommitSale", trace.WithAttributes(
		attribute.String("sale.customer_id", req.CustomerID),
		attribute.Int("sale.lines", len(req.Items)),
	))
	defer span.End()

	start := time.Now()
	sale, err := s.commit(ctx, req)
	s.metrics.record(ctx, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		s.logger.WarnContext(ctx, "sale commit failed",
			"customer_id", req.CustomerID,
			"kind", KindOf(err),
			"error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("sale.id", sale.ID))
	s.logger.InfoContext(ctx, "sale committed",
		"sale_id", sale.ID,
		"customer_id", sale.CustomerID,
		"items", len(sale.Items),
		"total", sale.Total.StringFixed(2))
	return sale, nil
}

func (s *SaleService) commit(ctx context.Context, req CommitRequest) (*domain.Sale, error) {
	req.RequestKey = strings.TrimSpace(req.RequestKey)
	if req.RequestKey != "" {
		existing, err := s.store.FindSaleByRequestKey(ctx, req.RequestKey)
		switch {
		case err == nil:
			return replay(existing, req)
		case !errors.Is(err, port.ErrNotFound):
			return nil, storageAborted(fmt.Errorf("lookup request key: %w", err))
		}
	}

	if _, err := s.store.GetCustomer(ctx, req.CustomerID); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, customerNotFound()
		}
		return nil, storageAborted(fmt.Errorf("read customer: %w", err))
	}

	lines, err := mergeLines(req.Items)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = domain.SaleStatusCompleted
	}
	if status != domain.SaleStatusPending && status != domain.SaleStatusCompleted {
		return nil, ErrInvalidStatus
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	snapshots, err := s.pricing.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	reservation, err := s.guard.Reserve(lines, snapshots)
	if err != nil {
		return nil, err
	}

	date := req.RequestedAt
	if date.IsZero() {
		date = s.now()
	}
	sale := domain.Sale{
		ID:         s.newID(),
		CustomerID: req.CustomerID,
		Date:       date.UTC(),
		Status:     status,
		RequestKey: req.RequestKey,
		Items:      make([]domain.SaleItem, 0, len(lines)),
	}
	for _, l := range lines {
		sale.Items = append(sale.Items, domain.SaleItem{
			ID:        s.newID(),
			SaleID:    sale.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     snapshots[l.ProductID].Price,
		})
	}
	sale.Total = domain.ComputeTotal(sale.Items)

	if err := s.store.AtomicApply(ctx, buildBatch(sale, reservation)); err != nil {
		return s.resolveApplyError(ctx, req, err)
	}
	return &sale, nil
}

func (s *SaleService) resolveApplyError(ctx context.Context, req CommitRequest, err error) (*domain.Sale, error) {
	var conflict *port.StockConflictError
	switch {
	case errors.As(err, &conflict):
		if conflict.Missing {
			return nil, productNotFound(conflict.ProductID)
		}
		return nil, insufficientStock(conflict.ProductID, conflict.Requested, conflict.Available)
	case errors.Is(err, port.ErrDuplicateRequest) && req.RequestKey != "":
		existing, findErr := s.store.FindSaleByRequestKey(ctx, req.RequestKey)
		if findErr != nil {
			return nil, storageAborted(fmt.Errorf("lookup request key after conflict: %w", findErr))
		}
		return replay(existing, req)
	}
	return nil, storageAborted(err)
}

// replay returns the sale already stored under the request key, provided it
// was committed for the same customer and the same quantities.
func replay(existing *domain.Sale, req CommitRequest) (*domain.Sale, error) {
	if !sameOrder(existing, req) {
		return nil, requestKeyConflict(req.RequestKey)
	}
	return existing, nil
}

func sameOrder(sale *domain.Sale, req CommitRequest) bool {
	if sale.CustomerID != req.CustomerID {
		return false
	}
	lines, err := mergeLines(req.Items)
	if err != nil || len(lines) != len(sale.Items) {
		return false
	}
	want := make(map[string]int, len(lines))
	for _, l := range lines {
		want[l.ProductID] = l.Quantity
	}
	for _, item := range sale.Items {
		if want[item.ProductID] != item.Quantity {
			return false
		}
	}
	return true
}

func buildBatch(sale domain.Sale, reservation Reservation) domain.Batch {
	header := sale
	header.Items = nil

	batch := make(domain.Batch, 0, 1+len(sale.Items)+len(reservation.Lines))
	batch = append(batch, domain.InsertSale{Sale: header})
	for i, item := range sale.Items {
		batch = append(batch, domain.InsertSaleItem{Item: item, Position: i})
	}
	return append(batch, reservation.Writes()...)
}

// mergeLines validates quantities and folds repeated products into one line,
// keeping the position of the first occurrence.
func mergeLines(items []LineRequest) ([]LineRequest, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	merged := make([]LineRequest, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, invalidQuantity(item.ProductID)
		}
		if i, ok := index[item.ProductID]; ok {
			if merged[i].Quantity > math.MaxInt-item.Quantity {
				return nil, invalidQuantity(item.ProductID)
			}
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

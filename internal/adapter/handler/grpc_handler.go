package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/shop-sales/internal/adapter/handler/rpcapi"
	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/core/service"
)

// SaleReader serves GetSale. CatalogService implements it.
type SaleReader interface {
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
}

type GRPCHandler struct {
	rpcapi.UnimplementedSaleServiceServer
	saleService *service.SaleService
	sales       SaleReader
}

// NewGRPCHandler builds the gRPC sale service. sales may be nil when the
// backend has no read model, and GetSale then reports Unimplemented.
func NewGRPCHandler(saleService *service.SaleService, sales SaleReader) *GRPCHandler {
	return &GRPCHandler{saleService: saleService, sales: sales}
}

func (h *GRPCHandler) CommitSale(ctx context.Context, req *rpcapi.CommitSaleRequest) (*rpcapi.CommitSaleResponse, error) {
	commit := service.CommitRequest{
		CustomerID: req.GetCustomerId(),
		Status:     domain.SaleStatus(req.Status),
		RequestKey: req.RequestKey,
		Items:      make([]service.LineRequest, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		commit.Items = append(commit.Items, service.LineRequest{ProductID: item.ProductID, Quantity: int(item.Quantity)})
	}
	if req.RequestedAt != "" {
		at, err := time.Parse(time.RFC3339, req.RequestedAt)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "requested_at must be RFC 3339")
		}
		commit.RequestedAt = at
	}

	sale, err := h.saleService.CommitSale(ctx, commit)
	if err != nil {
		return nil, grpcError(err)
	}
	return &rpcapi.CommitSaleResponse{Sale: toRPCSale(sale)}, nil
}

func (h *GRPCHandler) GetSale(ctx context.Context, req *rpcapi.GetSaleRequest) (*rpcapi.GetSaleResponse, error) {
	if h.sales == nil {
		return h.UnimplementedSaleServiceServer.GetSale(ctx, req)
	}
	if req.GetId() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	sale, err := h.sales.GetSale(ctx, req.GetId())
	if err != nil {
		return nil, grpcError(err)
	}
	return &rpcapi.GetSaleResponse{Sale: toRPCSale(sale)}, nil
}

func grpcError(err error) error {
	if errors.Is(err, service.ErrSaleNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}

	var se *service.SaleError
	if !errors.As(err, &se) {
		return status.Error(codes.Internal, "internal error")
	}

	code := codes.Internal
	switch se.Kind {
	case service.KindCustomerNotFound, service.KindProductNotFound:
		code = codes.NotFound
	case service.KindEmptyOrder, service.KindInvalidQuantity, service.KindInvalidStatus:
		code = codes.InvalidArgument
	case service.KindInsufficientStock:
		code = codes.FailedPrecondition
	case service.KindRequestKeyConflict:
		code = codes.AlreadyExists
	case service.KindStorageAborted:
		code = codes.Unavailable
	}

	// Storage failures are not echoed to clients.
	msg := se.Error()
	if se.Kind == service.KindStorageAborted {
		msg = "storage aborted, retry the request"
	}

	info := &errdetails.ErrorInfo{
		Reason:   string(se.Kind),
		Domain:   "sales.v1",
		Metadata: map[string]string{},
	}
	if se.ProductID != "" {
		info.Metadata["product_id"] = se.ProductID
	}
	if se.RequestKey != "" {
		info.Metadata["request_key"] = se.RequestKey
	}
	if se.Kind == service.KindInsufficientStock {
		info.Metadata["requested"] = strconv.Itoa(se.Requested)
		info.Metadata["available"] = strconv.Itoa(se.Available)
	}

	st, detailErr := status.New(code, msg).WithDetails(info)
	if detailErr != nil {
		return status.Error(code, msg)
	}
	return st.Err()
}

func toRPCSale(s *domain.Sale) *rpcapi.Sale {
	out := &rpcapi.Sale{
		ID:         s.ID,
		CustomerID: s.CustomerID,
		Date:       s.Date.UTC().Format(time.RFC3339),
		Total:      s.Total.StringFixed(2),
		Status:     string(s.Status),
		RequestKey: s.RequestKey,
		Items:      make([]rpcapi.SaleItem, 0, len(s.Items)),
	}
	for _, item := range s.Items {
		out.Items = append(out.Items, rpcapi.SaleItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  int32(item.Quantity),
			Price:     item.Price.StringFixed(2),
			Subtotal:  item.Subtotal().StringFixed(2),
		})
	}
	return out
}

package rpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	SaleService_CommitSale_FullMethodName = "/sales.v1.SaleService/CommitSale"
	SaleService_GetSale_FullMethodName    = "/sales.v1.SaleService/GetSale"
)

type SaleServiceServer interface {
	CommitSale(context.Context, *CommitSaleRequest) (*CommitSaleResponse, error)
	GetSale(context.Context, *GetSaleRequest) (*GetSaleResponse, error)
}

// UnimplementedSaleServiceServer can be embedded to have forward compatible implementations.
type UnimplementedSaleServiceServer struct{}

func (UnimplementedSaleServiceServer) CommitSale(context.Context, *CommitSaleRequest) (*CommitSaleResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CommitSale not implemented")
}

func (UnimplementedSaleServiceServer) GetSale(context.Context, *GetSaleRequest) (*GetSaleResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSale not implemented")
}

func RegisterSaleServiceServer(s grpc.ServiceRegistrar, srv SaleServiceServer) {
	s.RegisterService(&SaleService_ServiceDesc, srv)
}

func _SaleService_CommitSale_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CommitSaleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SaleServiceServer).CommitSale(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SaleService_CommitSale_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SaleServiceServer).CommitSale(ctx, req.(*CommitSaleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SaleService_GetSale_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetSaleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SaleServiceServer).GetSale(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SaleService_GetSale_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SaleServiceServer).GetSale(ctx, req.(*GetSaleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// SaleService_ServiceDesc is the grpc.ServiceDesc for SaleService.
var SaleService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "sales.v1.SaleService",
	HandlerType: (*SaleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CommitSale",
			Handler:    _SaleService_CommitSale_Handler,
		},
		{
			MethodName: "GetSale",
			Handler:    _SaleService_GetSale_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sales/v1/sale.proto",
}

type SaleServiceClient interface {
	CommitSale(ctx context.Context, in *CommitSaleRequest, opts ...grpc.CallOption) (*CommitSaleResponse, error)
	GetSale(ctx context.Context, in *GetSaleRequest, opts ...grpc.CallOption) (*GetSaleResponse, error)
}

type saleServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSaleServiceClient returns a client that always calls with the JSON codec.
func NewSaleServiceClient(cc grpc.ClientConnInterface) SaleServiceClient {
	return &saleServiceClient{cc}
}

func (c *saleServiceClient) CommitSale(ctx context.Context, in *CommitSaleRequest, opts ...grpc.CallOption) (*CommitSaleResponse, error) {
	out := new(CommitSaleResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	if err := c.cc.Invoke(ctx, SaleService_CommitSale_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *saleServiceClient) GetSale(ctx context.Context, in *GetSaleRequest, opts ...grpc.CallOption) (*GetSaleResponse, error) {
	out := new(GetSaleResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	if err := c.cc.Invoke(ctx, SaleService_GetSale_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

package carev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	CareEngine_Analyze_FullMethodName       = "/mirador.care.v1.CareEngine/Analyze"
	CareEngine_ComputeVitals_FullMethodName = "/mirador.care.v1.CareEngine/ComputeVitals"
	CareEngine_Diagnose_FullMethodName      = "/mirador.care.v1.CareEngine/Diagnose"
	CareEngine_Rank_FullMethodName          = "/mirador.care.v1.CareEngine/Rank"
	CareEngine_HealthCheck_FullMethodName   = "/mirador.care.v1.CareEngine/HealthCheck"
)

// CareEngineServer is the server API for the CareEngine service.
type CareEngineServer interface {
	Analyze(context.Context, *AnalyzeRequest) (*AnalyzeResponse, error)
	ComputeVitals(context.Context, *ComputeVitalsRequest) (*ComputeVitalsResponse, error)
	Diagnose(context.Context, *DiagnoseRequest) (*DiagnoseResponse, error)
	Rank(context.Context, *RankRequest) (*RankResponse, error)
	HealthCheck(context.Context, *HealthRequest) (*HealthResponse, error)
}

// UnimplementedCareEngineServer returns Unimplemented for every method.
type UnimplementedCareEngineServer struct{}

func (UnimplementedCareEngineServer) Analyze(context.Context, *AnalyzeRequest) (*AnalyzeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Analyze not implemented")
}
func (UnimplementedCareEngineServer) ComputeVitals(context.Context, *ComputeVitalsRequest) (*ComputeVitalsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ComputeVitals not implemented")
}
func (UnimplementedCareEngineServer) Diagnose(context.Context, *DiagnoseRequest) (*DiagnoseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Diagnose not implemented")
}
func (UnimplementedCareEngineServer) Rank(context.Context, *RankRequest) (*RankResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Rank not implemented")
}
func (UnimplementedCareEngineServer) HealthCheck(context.Context, *HealthRequest) (*HealthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method HealthCheck not implemented")
}

// RegisterCareEngineServer attaches srv to the gRPC registrar.
func RegisterCareEngineServer(s grpc.ServiceRegistrar, srv CareEngineServer) {
	s.RegisterService(&CareEngine_ServiceDesc, srv)
}

// unaryHandler adapts a typed method to the handler signature grpc.MethodDesc expects.
func unaryHandler[Req, Resp any](fullMethod string, call func(CareEngineServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CareEngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CareEngineServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CareEngine_ServiceDesc describes the mirador.care.v1.CareEngine service.
var CareEngine_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "mirador.care.v1.CareEngine",
	HandlerType: (*CareEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: unaryHandler(CareEngine_Analyze_FullMethodName, CareEngineServer.Analyze)},
		{MethodName: "ComputeVitals", Handler: unaryHandler(CareEngine_ComputeVitals_FullMethodName, CareEngineServer.ComputeVitals)},
		{MethodName: "Diagnose", Handler: unaryHandler(CareEngine_Diagnose_FullMethodName, CareEngineServer.Diagnose)},
		{MethodName: "Rank", Handler: unaryHandler(CareEngine_Rank_FullMethodName, CareEngineServer.Rank)},
		{MethodName: "HealthCheck", Handler: unaryHandler(CareEngine_HealthCheck_FullMethodName, CareEngineServer.HealthCheck)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mirador/care/v1/care.proto",
}

// CareEngineClient is the client API for the CareEngine service.
type CareEngineClient interface {
	Analyze(ctx context.Context, in *AnalyzeRequest, opts ...grpc.CallOption) (*AnalyzeResponse, error)
	ComputeVitals(ctx context.Context, in *ComputeVitalsRequest, opts ...grpc.CallOption) (*ComputeVitalsResponse, error)
	Diagnose(ctx context.Context, in *DiagnoseRequest, opts ...grpc.CallOption) (*DiagnoseResponse, error)
	Rank(ctx context.Context, in *RankRequest, opts ...grpc.CallOption) (*RankResponse, error)
	HealthCheck(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error)
}

type careEngineClient struct {
	cc grpc.ClientConnInterface
}

// NewCareEngineClient wraps cc. Every call is sent with the JSON content-subtype.
func NewCareEngineClient(cc grpc.ClientConnInterface) CareEngineClient {
	return &careEngineClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *careEngineClient) Analyze(ctx context.Context, in *AnalyzeRequest, opts ...grpc.CallOption) (*AnalyzeResponse, error) {
	return invoke[AnalyzeResponse](ctx, c.cc, CareEngine_Analyze_FullMethodName, in, opts)
}

func (c *careEngineClient) ComputeVitals(ctx context.Context, in *ComputeVitalsRequest, opts ...grpc.CallOption) (*ComputeVitalsResponse, error) {
	return invoke[ComputeVitalsResponse](ctx, c.cc, CareEngine_ComputeVitals_FullMethodName, in, opts)
}

func (c *careEngineClient) Diagnose(ctx context.Context, in *DiagnoseRequest, opts ...grpc.CallOption) (*DiagnoseResponse, error) {
	return invoke[DiagnoseResponse](ctx, c.cc, CareEngine_Diagnose_FullMethodName, in, opts)
}

func (c *careEngineClient) Rank(ctx context.Context, in *RankRequest, opts ...grpc.CallOption) (*RankResponse, error) {
	return invoke[RankResponse](ctx, c.cc, CareEngine_Rank_FullMethodName, in, opts)
}

func (c *careEngineClient) HealthCheck(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error) {
	return invoke[HealthResponse](ctx, c.cc, CareEngine_HealthCheck_FullMethodName, in, opts)
}

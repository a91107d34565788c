package connectors

import (
	"context"

	"github.com/xela07ax/trustgate/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	expertServiceName = "trustgate.expert.v1.ExpertService"
	analyzeMethod     = "/" + expertServiceName + "/Analyze"
	retryAfterHeader  = "retry-after"
)

type analyzeRequest struct {
	AgentType domain.AgentType `json:"agent_type"`
	Subject   domain.Subject   `json:"subject"`
}

// Analyzer — серверная сторона эксперта.
type Analyzer interface {
	Type() domain.AgentType
	Analyze(ctx context.Context, subject domain.Subject) (domain.AgentOutput, error)
}

// ExpertServiceDesc описывает ExpertService без сгенерированного кода: Struct на входе и выходе.
var ExpertServiceDesc = grpc.ServiceDesc{
	ServiceName: expertServiceName,
	HandlerType: (*Analyzer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trustgate/expert/v1/expert.proto",
}

// RegisterExpertService публикует локального эксперта (например, MockExpert) по gRPC.
func RegisterExpertService(s grpc.ServiceRegistrar, a Analyzer) {
	s.RegisterService(&ExpertServiceDesc, a)
}

func analyzeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return serveAnalyze(ctx, srv.(Analyzer), req.(*structpb.Struct))
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: analyzeMethod}
	return interceptor(ctx, in, info, handler)
}

func serveAnalyze(ctx context.Context, a Analyzer, in *structpb.Struct) (*structpb.Struct, error) {
	var req analyzeRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}

	out, err := a.Analyze(ctx, req.Subject)
	if err != nil {
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		return nil, status.Errorf(codes.Internal, "analysis failed: %v", err)
	}

	resp, err := toStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode output: %v", err)
	}
	return resp, nil
}

package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/xela07ax/trustgate/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	reviewServiceName = "trustgate.review.v1.ReviewService"
	ReviewMethod      = "/" + reviewServiceName + "/Review"
)

// ReviewServiceServer — ревью по gRPC: JSON-форма ReviewRequest/ReviewResult в google.protobuf.Struct.
type ReviewServiceServer interface {
	Review(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ReviewServiceDesc = grpc.ServiceDesc{
	ServiceName: reviewServiceName,
	HandlerType: (*ReviewServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Review", Handler: reviewHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trustgate/review/v1/review.proto",
}

func RegisterReviewServiceServer(s grpc.ServiceRegistrar, srv ReviewServiceServer) {
	s.RegisterService(&ReviewServiceDesc, srv)
}

func reviewHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReviewServiceServer).Review(ctx, req.(*structpb.Struct))
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReviewMethod}
	return interceptor(ctx, in, info, handler)
}

type GRPCReviewServer struct {
	core *ReviewCore
}

func NewGRPCReviewServer(core *ReviewCore) *GRPCReviewServer {
	return &GRPCReviewServer{core: core}
}

func (s *GRPCReviewServer) Review(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	// 1. Trace-ID из метаданных, как X-Trace-ID в HTTP
	traceID := uuid.New().String()
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(TraceIDHeader); len(ids) > 0 && ids[0] != "" {
			traceID = ids[0]
		}
	}
	ctx = WithTraceID(ctx, traceID)

	// 2. Struct -> ReviewRequest через JSON
	var rr domain.ReviewRequest
	raw, err := json.Marshal(req.AsMap())
	if err == nil {
		err = json.Unmarshal(raw, &rr)
	}
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed review request: %v", err)
	}

	// 3. Тот же пайплайн, что и для HTTP
	res, err := s.core.ProcessReview(ctx, rr)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "review failed: %v", err)
	}

	// 4. Ответ обратно в Struct
	out, err := toStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	return out, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

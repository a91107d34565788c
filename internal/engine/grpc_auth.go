package engine

import (
	"context"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// APIKeyHeader — ключ метаданных (в gRPC заголовки в нижнем регистре)
const APIKeyHeader = "x-trustgate-key"

// APIKeyInterceptor сверяет x-trustgate-key с bcrypt-хэшем из конфигурации.
func APIKeyInterceptor(hash []byte) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Errorf(codes.Unauthenticated, "missing metadata")
		}

		keys := md.Get(APIKeyHeader)
		if len(keys) == 0 {
			return nil, status.Errorf(codes.Unauthenticated, "missing api key")
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(keys[0])); err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid api key")
		}

		return handler(ctx, req)
	}
}

package interceptors

import (
	"context"

	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lanemesh/pkg/logger"
)

func recoveryHandler(ctx context.Context, p any) error {
	logger.WithContext(ctx).Error("panic recovered in gRPC handler", "panic", p)
	return status.Errorf(codes.Internal, "internal error")
}

// RecoveryInterceptor переводит панику в handler'е в codes.Internal, не
// обрывая остальной stack интерсепторов.
func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandlerContext(recoveryHandler))
}

// StreamRecoveryInterceptor - потоковый аналог RecoveryInterceptor.
func StreamRecoveryInterceptor() grpc.StreamServerInterceptor {
	return grpc_recovery.StreamServerInterceptor(grpc_recovery.WithRecoveryHandlerContext(recoveryHandler))
}

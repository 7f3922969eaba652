package interceptors

import (
	"google.golang.org/grpc"
)

// ServerConfig конфигурация серверных интерсепторов.
type ServerConfig struct {
	ServiceName string
}

// UnaryServerInterceptors возвращает цепочку unary интерсепторов: recovery,
// trace context extraction (C3), metrics, logging, request validation -
// в этом порядке: recovery снаружи превращает панику в любом звене цепочки в
// codes.Internal (запрос с паникой в метрики не попадает), а трассировочный
// контекст устанавливается до того, как логирование и метрики его прочитают.
func UnaryServerInterceptors(cfg *ServerConfig) grpc.UnaryServerInterceptor {
	return chainUnaryInterceptors(
		RecoveryInterceptor(),
		TraceUnaryServerInterceptor(),
		MetricsInterceptor(cfg.ServiceName),
		LoggingInterceptor(),
		ValidationInterceptor(),
	)
}

// StreamServerInterceptors - потоковый аналог UnaryServerInterceptors.
func StreamServerInterceptors(cfg *ServerConfig) grpc.StreamServerInterceptor {
	return chainStreamInterceptors(
		StreamRecoveryInterceptor(),
		TraceStreamServerInterceptor(),
		StreamMetricsInterceptor(cfg.ServiceName),
		StreamLoggingInterceptor(),
	)
}

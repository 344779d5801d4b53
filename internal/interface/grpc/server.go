// Package grpc 运维gRPC端口：标准健康检查（grpc.health.v1）和反射
//
// 业务接口只走HTTP，这里给K8s探针和grpcurl使用
package grpc

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName 健康检查中的服务名
const ServiceName = "pharmatech.fulfillment"

// Server gRPC运维服务
type Server struct {
	server *grpc.Server
	health *health.Server
	port   int
	log    *zap.Logger
}

// NewServer 注册健康检查与反射，初始状态NOT_SERVING，依赖就绪后调用SetServing
func NewServer(port int, log *zap.Logger) *Server {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{server: s, health: hs, port: port, log: log}
}

// SetServing 切换健康状态（整体与ServiceName同步）
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve 阻塞直到Stop
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("监听gRPC端口失败: %w", err)
	}
	return s.ServeListener(lis)
}

// ServeListener 使用已有listener（测试用随机端口）
func (s *Server) ServeListener(lis net.Listener) error {
	s.log.Info("grpc_server_started", zap.String("addr", lis.Addr().String()))
	return s.server.Serve(lis)
}

// Stop 先摘流量再优雅停止
func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

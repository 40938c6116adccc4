package handler

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/v1"
)

// OrderServiceName is the health-check service name for order placement.
const OrderServiceName = "orderledger.OrderService"

// GRPCHandler exposes serving status over the standard gRPC health protocol.
type GRPCHandler struct {
	health *health.Server
}

func NewGRPCHandler() *GRPCHandler {
	h := &GRPCHandler{health: health.NewServer()}
	h.health.SetServingStatus(OrderServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *GRPCHandler) Register(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, h.health)
}

// MarkServing reports the order service and the server as a whole as up.
func (h *GRPCHandler) MarkServing() {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.health.SetServingStatus(OrderServiceName, healthpb.HealthCheckResponse_SERVING)
}

// MarkDraining flips every service to NOT_SERVING so clients stop sending
// orders before shutdown.
func (h *GRPCHandler) MarkDraining() {
	h.health.Shutdown()
}

func (h *GRPCHandler) Health() healthpb.HealthServer {
	return h.health
}

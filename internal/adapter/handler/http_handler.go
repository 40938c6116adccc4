package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/service"
	"github.com/rl1809/order-ledger/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// Catalog is the product side of the inventory.
type Catalog interface {
	AddProduct(name string, price decimal.Decimal, quantity int) error
	Restock(name string, quantity int) error
	Lookup(name string) (domain.Product, bool)
	Snapshot() []domain.Product
}

type HTTPHandler struct {
	orderService     *service.OrderService
	catalog          Catalog
	validate         *validator.Validate
	logger           *zap.Logger
	admissionTimeout time.Duration
}

type AddProductRequest struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"gte=0"`
}

type RestockRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type PlaceOrderRequest struct {
	Customer string             `json:"customer" validate:"required"`
	Lines    []domain.OrderLine `json:"lines"`
}

type PlaceOrderResponse struct {
	Order     domain.Order `json:"order"`
	Fulfilled bool         `json:"fulfilled"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

// NewHTTPHandler builds the handler. admissionTimeout bounds how long a
// placement waits for the gate; zero means it waits as long as the request.
func NewHTTPHandler(orderService *service.OrderService, catalog Catalog, logger *zap.Logger, admissionTimeout time.Duration) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		orderService:     orderService,
		catalog:          catalog,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
		logger:           logger,
		admissionTimeout: admissionTimeout,
	}
}

// Routes registers every endpoint on mux.
func (h *HTTPHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/products", h.AddProduct)
	mux.HandleFunc("GET /api/products/{name}", h.GetProduct)
	mux.HandleFunc("POST /api/products/{name}/restock", h.Restock)
	mux.HandleFunc("GET /api/inventory", h.Inventory)
	mux.HandleFunc("POST /api/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
}

func (h *HTTPHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req AddProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil || req.Price.IsNegative() {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "missing or invalid fields"})
		return
	}

	err := h.catalog.AddProduct(req.Name, req.Price, req.Quantity)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		if errors.Is(err, domain.ErrDuplicateProduct) {
			status = http.StatusConflict
			message = "product already exists"
		} else if errors.Is(err, domain.ErrInvalidProduct) {
			status = http.StatusBadRequest
			message = "invalid product"
		}

		h.writeJSON(w, status, ErrorResponse{Message: message})
		return
	}

	logger.Info(r.Context(), h.logger, "product added",
		zap.String("request_id", w.Header().Get(requestIDHeader)),
		zap.String("product", req.Name),
		zap.Int("quantity", req.Quantity),
	)
	h.writeJSON(w, http.StatusCreated, domain.Product{Name: req.Name, Price: req.Price, Quantity: req.Quantity})
}

// GetProduct also finds sold-out products, which the inventory listing hides.
func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.catalog.Lookup(r.PathValue("name"))
	if !ok {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "product not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "quantity must be positive"})
		return
	}

	name := r.PathValue("name")
	if err := h.catalog.Restock(name, req.Quantity); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			h.writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "product not found"})
			return
		}
		if errors.Is(err, domain.ErrInvalidProduct) {
			h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "restock quantity too large"})
			return
		}
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
		return
	}

	p, _ := h.catalog.Lookup(name)
	h.writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.catalog.Snapshot())
}

// PlaceOrder answers 200 for every admitted order, fulfilled or not. The
// per-line outcomes in the body say what was deducted.
func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "missing required fields"})
		return
	}

	ctx := r.Context()
	if h.admissionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.admissionTimeout)
		defer cancel()
	}

	order, err := h.orderService.PlaceOrder(ctx, req.Customer, req.Lines)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
			message = "too many orders in flight, retry later"
		} else if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
			message = "request cancelled"
		}

		h.writeJSON(w, status, ErrorResponse{Message: message})
		return
	}

	h.writeJSON(w, http.StatusOK, PlaceOrderResponse{
		Order:     order,
		Fulfilled: order.Fulfilled(),
	})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := []domain.Order{}
	for o := range h.orderService.Orders() {
		orders = append(orders, o)
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid order id"})
		return
	}

	order, err := h.orderService.GetOrder(id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "order not found"})
		return
	}
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// WithRequestID tags every request with an id, taken from the incoming
// header when present, and logs its completion.
func (h *HTTPHandler) WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)

		logger.Debug(r.Context(), h.logger, "request served",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent, so a failed body write can only be logged
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("failed to write response body",
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
}

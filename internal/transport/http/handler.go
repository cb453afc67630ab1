package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/items"
	"github.com/vladislavdragonenkov/ims/internal/service/orders"
)

// Handler обслуживает REST API каталога и заказов.
type Handler struct {
	items  *items.Service
	orders *orders.Service
	idem   domain.IdempotencyRepository
	logger *log.Entry
}

// NewHandler конструирует HTTP-обработчик с зависимостями.
func NewHandler(itemsSvc *items.Service, ordersSvc *orders.Service, idem domain.IdempotencyRepository, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return &Handler{
		items:  itemsSvc,
		orders: ordersSvc,
		idem:   idem,
		logger: logger,
	}
}

// Router собирает маршруты API.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Route("/items", func(r chi.Router) {
		r.Post("/", h.withIdempotency(h.createItem))
		r.Get("/", h.listItems)
		r.Get("/{id}", h.getItem)
		r.Delete("/{id}", h.deleteItem)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.withIdempotency(h.createOrder))
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/timeline", h.orderTimeline)
		r.Post("/{id}/cancel", h.withIdempotency(h.cancelOrder))
		r.Post("/{id}/ship", h.withIdempotency(h.shipOrder))
	})

	return r
}

type createItemRequest struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Stock int32  `json:"stock"`
}

type itemResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Stock     int32     `json:"stock"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type createOrderRequest struct {
	Items []orderLineRequest `json:"items"`
}

type orderLineRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int32  `json:"quantity"`
}

type orderLineResponse struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"itemId"`
	Quantity  int32     `json:"quantity"`
	UnitPrice int64     `json:"unitPrice"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderResponse struct {
	ID        string              `json:"id"`
	Status    string              `json:"status"`
	Total     int64               `json:"total"`
	Lines     []orderLineResponse `json:"lines"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json body", nil)
		return
	}

	if details := validateCreateItem(req); len(details) > 0 {
		h.writeError(w, http.StatusBadRequest, "validation failed", details)
		return
	}

	item, err := h.items.Create(r.Context(), items.CreateInput{
		Name:       strings.TrimSpace(req.Name),
		PriceMinor: req.Price,
		Stock:      req.Stock,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	list, err := h.items.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result := make([]itemResponse, 0, len(list))
	for _, item := range list {
		result = append(result, toItemResponse(item))
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json body", nil)
		return
	}

	if details := validateCreateOrder(req); len(details) > 0 {
		h.writeError(w, http.StatusBadRequest, "validation failed", details)
		return
	}

	lines := make([]orders.CreateLine, 0, len(req.Items))
	for _, line := range req.Items {
		lines = append(lines, orders.CreateLine{ItemID: line.ItemID, Qty: line.Quantity})
	}

	order, err := h.orders.Create(r.Context(), lines)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result := make([]orderResponse, 0, len(list))
	for _, order := range list {
		result = append(result, toOrderResponse(order))
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) orderTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.orders.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		result = append(result, timelineEventResponse{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	// 200 и для свежей отмены, и для повторной: операция идемпотентна.
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) shipOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Ship(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func validateCreateItem(req createItemRequest) []string {
	var details []string
	name := strings.TrimSpace(req.Name)
	if name == "" {
		details = append(details, "name is required")
	}
	if len(name) > domain.MaxItemNameLength {
		details = append(details, "name must be at most 200 characters")
	}
	if req.Price < 0 {
		details = append(details, "price must be non-negative")
	}
	if req.Stock < 0 {
		details = append(details, "stock must be non-negative")
	}
	return details
}

func validateCreateOrder(req createOrderRequest) []string {
	var details []string
	if len(req.Items) == 0 {
		details = append(details, "items must contain at least one entry")
	}
	for i, line := range req.Items {
		if strings.TrimSpace(line.ItemID) == "" {
			details = append(details, indexed(i, "itemId is required"))
		}
		if line.Quantity <= 0 {
			details = append(details, indexed(i, "quantity must be positive"))
		}
	}
	return details
}

func indexed(i int, msg string) string {
	return "items[" + itoa(i) + "]: " + msg
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

func toItemResponse(item domain.Item) itemResponse {
	return itemResponse{
		ID:        item.ID,
		Name:      item.Name,
		Price:     item.PriceMinor,
		Stock:     item.Stock,
		Version:   item.Version,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func toOrderResponse(order domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			ID:        line.ID,
			ItemID:    line.ItemID,
			Quantity:  line.Qty,
			UnitPrice: line.UnitPriceMinor,
			CreatedAt: line.CreatedAt,
		})
	}
	return orderResponse{
		ID:        order.ID,
		Status:    string(order.Status),
		Total:     order.TotalMinor,
		Lines:     lines,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}

// writeDomainError транслирует доменные ошибки в HTTP-статусы:
// NotFound → 404, Conflict → 409, Validation → 400, остальное → 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, err.Error(), nil)
	case domain.IsConflict(err):
		h.writeError(w, http.StatusConflict, err.Error(), nil)
	case domain.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, context.Canceled):
		h.writeError(w, http.StatusServiceUnavailable, "request cancelled", nil)
	default:
		h.logger.WithError(err).Error("unhandled error")
		h.writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Warn("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string, details []string) {
	h.writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

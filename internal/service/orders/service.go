package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/service/inventory"
)

const (
	timelineEventStatusChanged = "OrderStatusChanged"

	aggregateTypeOrder = "order"
)

// CreateLine — одна запрошенная позиция при создании заказа.
type CreateLine struct {
	ItemID string
	Qty    int32
}

// Service оркестрирует жизненный цикл заказа: create, cancel, ship, get, list.
// Каждая мутация выполняется как одна атомарная транзакция хранилища.
type Service struct {
	store   domain.Store
	ledger  *inventory.Ledger
	logger  *log.Entry
	metrics *metrics.OrderMetrics
}

// NewService создаёт рабочий экземпляр сервиса заказов.
func NewService(store domain.Store, ledger *inventory.Ledger, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		store:   store,
		ledger:  ledger,
		logger:  logger,
		metrics: metrics.NewOrderMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(store domain.Store, ledger *inventory.Ledger, logger *log.Entry) *Service {
	svc := NewService(store, ledger, logger)
	svc.metrics = nil
	return svc
}

// Create создаёт заказ: резервирует остаток по каждой позиции, фиксирует цены
// и сумму, сохраняет заказ — всё в одной транзакции. Любая неудача по любой
// позиции откатывает транзакцию целиком: частичных резервов не остаётся.
func (s *Service) Create(ctx context.Context, lines []CreateLine) (domain.Order, error) {
	if err := validateCreateLines(lines); err != nil {
		return domain.Order{}, err
	}

	start := time.Now()
	now := start.UTC()
	var created domain.Order

	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		ids := make([]string, 0, len(lines))
		seen := make(map[string]struct{}, len(lines))
		for _, line := range lines {
			if _, ok := seen[line.ItemID]; ok {
				continue
			}
			seen[line.ItemID] = struct{}{}
			ids = append(ids, line.ItemID)
		}

		found, err := tx.Items().GetBatch(ctx, ids)
		if err != nil {
			return fmt.Errorf("load items: %w", err)
		}

		// Предварительная проверка существования и остатка — только быстрый
		// отказ; корректность под гонками обеспечивает условная запись ниже.
		for _, line := range lines {
			item, ok := found[line.ItemID]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrItemNotFound, line.ItemID)
			}
			if item.Stock < line.Qty {
				return fmt.Errorf("%w: %s", domain.ErrOutOfStock, item.Name)
			}
		}

		for _, line := range lines {
			if err := s.ledger.Reserve(ctx, tx, line.ItemID, line.Qty); err != nil {
				return err
			}
		}

		orderID := uuid.NewString()
		orderLines := make([]domain.OrderLine, 0, len(lines))
		var total int64
		for _, line := range lines {
			item := found[line.ItemID]
			orderLines = append(orderLines, domain.OrderLine{
				ID:             uuid.NewString(),
				OrderID:        orderID,
				ItemID:         line.ItemID,
				Qty:            line.Qty,
				UnitPriceMinor: item.PriceMinor,
				CreatedAt:      now,
			})
			total += int64(line.Qty) * item.PriceMinor
		}

		order := domain.Order{
			ID:         orderID,
			Status:     domain.OrderStatusCreated,
			TotalMinor: total,
			Lines:      orderLines,
			Version:    0,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return errors.New(joinErrors(errs))
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("persist order: %w", err)
		}

		s.enqueueOrderEvent(ctx, tx, kafka.EventTypeOrderCreated, order)

		created = order
		return nil
	})
	if err != nil {
		s.recordCreateFailure(err)
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
		s.metrics.RecordCreateDuration(time.Since(start))
		for _, line := range created.Lines {
			s.metrics.RecordStockReserved(int64(line.Qty))
		}
	}
	s.appendStatusTimeline(ctx, created.ID, created.Status, "")

	s.logger.WithFields(log.Fields{
		"order_id": created.ID,
		"lines":    len(created.Lines),
		"total":    created.TotalMinor,
	}).Info("order created")

	return created, nil
}

// Cancel отменяет заказ, возвращая резерв на склад ровно один раз.
// Повторная отмена — успешный no-op; отмена отгруженного заказа — конфликт.
func (s *Service) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	start := time.Now()
	var (
		result   domain.Order
		released bool
	)

	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}

		switch domain.DecideCancel(order.Status) {
		case domain.CancelNoop:
			// Заказ уже отменён: фиксируем успех, ничего не меняя.
			result = order
			return nil
		case domain.CancelForbidden:
			if order.Status == domain.OrderStatusShipped {
				return domain.ErrOrderShipped
			}
			return fmt.Errorf("cancel order in status %q: %w", order.Status, domain.ErrOrderVersionConflict)
		}

		for _, line := range order.Lines {
			if err := s.ledger.Release(ctx, tx, line.ItemID, line.Qty); err != nil {
				return err
			}
		}

		order.Status = domain.OrderStatusCancelled
		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, order); err != nil {
			return fmt.Errorf("persist cancellation: %w", err)
		}

		s.enqueueOrderEvent(ctx, tx, kafka.EventTypeOrderCancelled, order)

		result = order
		released = true
		return nil
	})
	if err != nil {
		s.recordCancelFailure(orderID, err)
		return domain.Order{}, err
	}

	if !released {
		return result, nil
	}

	// Save поднял версию в хранилище; перечитываем, чтобы вернуть актуальную копию.
	updated, err := s.store.Orders().Get(ctx, result.ID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", result.ID).Warn("reload after cancel failed")
		updated = result
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCancelled()
		s.metrics.RecordCancelDuration(time.Since(start))
		for _, line := range updated.Lines {
			s.metrics.RecordStockReleased(int64(line.Qty))
		}
	}
	s.appendStatusTimeline(ctx, updated.ID, updated.Status, "cancelled by client")

	s.logger.WithField("order_id", updated.ID).Info("order cancelled")

	return updated, nil
}

// Ship переводит заказ из created в shipped. Остаток не меняется:
// зарезервированные единицы считаются выбывшими со склада.
func (s *Service) Ship(ctx context.Context, orderID string) (domain.Order, error) {
	var result domain.Order

	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}

		if !domain.CanShip(order.Status) {
			return fmt.Errorf("ship order in status %q: %w", order.Status, domain.ErrOrderNotShippable)
		}

		order.Status = domain.OrderStatusShipped
		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, order); err != nil {
			return fmt.Errorf("persist shipment: %w", err)
		}

		s.enqueueOrderEvent(ctx, tx, kafka.EventTypeOrderShipped, order)

		result = order
		return nil
	})
	if err != nil {
		if domain.IsConflict(err) && s.metrics != nil {
			s.metrics.RecordConflict(metrics.ConflictReasonBadTransition)
		}
		return domain.Order{}, err
	}

	updated, err := s.store.Orders().Get(ctx, result.ID)
	if err != nil {
		updated = result
	}

	if s.metrics != nil {
		s.metrics.RecordOrderShipped()
	}
	s.appendStatusTimeline(ctx, updated.ID, updated.Status, "")

	return updated, nil
}

// Get возвращает заказ с позициями (read-проекция).
func (s *Service) Get(ctx context.Context, orderID string) (domain.Order, error) {
	return s.store.Orders().Get(ctx, orderID)
}

// List возвращает все заказы с позициями, новые первыми (read-проекция).
func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	return s.store.Orders().List(ctx)
}

// Timeline возвращает события жизненного цикла заказа.
func (s *Service) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.store.Orders().Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.Timeline().List(ctx, orderID)
}

func validateCreateLines(lines []CreateLine) error {
	if len(lines) == 0 {
		return domain.ErrOrderLinesRequired
	}
	for _, line := range lines {
		if line.ItemID == "" {
			return domain.ErrLineItemIDRequired
		}
		if line.Qty <= 0 {
			return domain.ErrLineQtyInvalid
		}
	}
	return nil
}

// enqueueOrderEvent кладёт событие в outbox той же транзакцией, что и мутация:
// событие уйдёт наружу только если транзакция зафиксировалась.
func (s *Service) enqueueOrderEvent(ctx context.Context, tx domain.Tx, eventType kafka.EventType, order domain.Order) {
	event := kafka.NewOrderEvent(eventType, order.ID, string(order.Status), map[string]interface{}{
		"total_minor": order.TotalMinor,
		"lines_count": len(order.Lines),
	})
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to marshal order event")
		return
	}

	if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: aggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue order event")
	}
}

// appendStatusTimeline записывает смену статуса в timeline (best effort, вне транзакции).
func (s *Service) appendStatusTimeline(ctx context.Context, orderID string, status domain.OrderStatus, reason string) {
	err := s.store.Timeline().Append(ctx, domain.TimelineEvent{
		OrderID:  orderID,
		Type:     timelineEventStatusChanged,
		Reason:   strings.TrimSpace(fmt.Sprintf("%s %s", status, reason)),
		Occurred: time.Now().UTC(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append timeline event")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}

func (s *Service) recordCreateFailure(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		s.metrics.RecordConflict(metrics.ConflictReasonOutOfStock)
	case errors.Is(err, domain.ErrStockChanged):
		s.metrics.RecordConflict(metrics.ConflictReasonStockChanged)
	}
}

func (s *Service) recordCancelFailure(orderID string, err error) {
	s.logger.WithError(err).WithField("order_id", orderID).Warn("cancel failed")
	if s.metrics != nil && errors.Is(err, domain.ErrOrderShipped) {
		s.metrics.RecordConflict(metrics.ConflictReasonBadTransition)
	}
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

package items

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// CreateInput — проверенные поля запроса на создание товара.
type CreateInput struct {
	Name       string
	PriceMinor int64
	Stock      int32
}

// Service обслуживает каталог товаров. Остаток товара сервис не трогает:
// после создания stock мутируется только ledger'ом внутри заказов.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "items")
	}
	return &Service{store: store, logger: logger}
}

// Create сохраняет новый товар.
func (s *Service) Create(ctx context.Context, input CreateInput) (domain.Item, error) {
	now := time.Now().UTC()
	item := domain.Item{
		ID:         uuid.NewString(),
		Name:       input.Name,
		PriceMinor: input.PriceMinor,
		Stock:      input.Stock,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if errs := item.ValidateInvariants(); len(errs) > 0 {
		return domain.Item{}, errors.Join(errs...)
	}

	if err := s.store.Items().Create(ctx, item); err != nil {
		s.logger.WithError(err).Error("failed to create item")
		return domain.Item{}, err
	}

	s.logger.WithFields(log.Fields{
		"item_id": item.ID,
		"name":    item.Name,
		"stock":   item.Stock,
	}).Info("item created")

	return item, nil
}

// Get возвращает товар по идентификатору.
func (s *Service) Get(ctx context.Context, id string) (domain.Item, error) {
	return s.store.Items().Get(ctx, strings.TrimSpace(id))
}

// List возвращает все товары, новые первыми.
func (s *Service) List(ctx context.Context) ([]domain.Item, error) {
	return s.store.Items().List(ctx)
}

// Delete удаляет товар из каталога. Позиции существующих заказов хранят
// собственный снапшот цены и количество, поэтому удаление их не затрагивает.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Items().Delete(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logger.WithField("item_id", id).Info("item deleted")
	return nil
}

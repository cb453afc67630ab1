package integration

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/inventory"
	"github.com/vladislavdragonenkov/ims/internal/service/items"
	"github.com/vladislavdragonenkov/ims/internal/service/orders"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказов.
type OrderLifecycleTestSuite struct {
	suite.Suite
	store  *memory.Store
	items  *items.Service
	orders *orders.Service
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.store = memory.NewStore()
	ledger := inventory.NewLedger(logger)
	suite.orders = orders.NewServiceWithoutMetrics(suite.store, ledger, logger)
	suite.items = items.NewService(suite.store, logger)
}

func (suite *OrderLifecycleTestSuite) seedItem(name string, price int64, stock int32) domain.Item {
	item, err := suite.items.Create(context.Background(), items.CreateInput{
		Name:       name,
		PriceMinor: price,
		Stock:      stock,
	})
	suite.Require().NoError(err)
	return item
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	ctx := context.Background()

	laptop := suite.seedItem("laptop-pro", 250000, 3)
	mouse := suite.seedItem("wireless-mouse", 3500, 10)

	// 1. Создаём заказ из двух позиций
	order, err := suite.orders.Create(ctx, []orders.CreateLine{
		{ItemID: laptop.ID, Qty: 1},
		{ItemID: mouse.ID, Qty: 2},
	})
	suite.Require().NoError(err)
	suite.Equal(domain.OrderStatusCreated, order.Status)
	suite.Equal(int64(250000+2*3500), order.TotalMinor)
	suite.Len(order.Lines, 2)

	// 2. Остатки списаны условной записью
	laptopAfter, err := suite.items.Get(ctx, laptop.ID)
	suite.Require().NoError(err)
	suite.Equal(int32(2), laptopAfter.Stock)

	mouseAfter, err := suite.items.Get(ctx, mouse.ID)
	suite.Require().NoError(err)
	suite.Equal(int32(8), mouseAfter.Stock)

	// 3. Событие создания легло в outbox в той же транзакции
	pending, err := suite.store.Outbox().PullPending(ctx, 10)
	suite.Require().NoError(err)
	suite.Require().Len(pending, 1)
	suite.Equal("order.created", pending[0].EventType)
	suite.Equal(order.ID, pending[0].AggregateID)

	// 4. Отгружаем заказ
	shipped, err := suite.orders.Ship(ctx, order.ID)
	suite.Require().NoError(err)
	suite.Equal(domain.OrderStatusShipped, shipped.Status)

	// 5. Timeline зафиксировал создание и отгрузку
	events, err := suite.orders.Timeline(ctx, order.ID)
	suite.Require().NoError(err)
	suite.Len(events, 2)
}

func (suite *OrderLifecycleTestSuite) TestCancelReleasesStockExactlyOnce() {
	ctx := context.Background()

	item := suite.seedItem("monitor", 45000, 5)

	order, err := suite.orders.Create(ctx, []orders.CreateLine{
		{ItemID: item.ID, Qty: 3},
	})
	suite.Require().NoError(err)

	afterCreate, err := suite.items.Get(ctx, item.ID)
	suite.Require().NoError(err)
	suite.Equal(int32(2), afterCreate.Stock)

	// Первая отмена возвращает остаток
	cancelled, err := suite.orders.Cancel(ctx, order.ID)
	suite.Require().NoError(err)
	suite.Equal(domain.OrderStatusCancelled, cancelled.Status)

	afterCancel, err := suite.items.Get(ctx, item.ID)
	suite.Require().NoError(err)
	suite.Equal(int32(5), afterCancel.Stock)

	// Повторная отмена — no-op: статус прежний, остаток не двигается
	again, err := suite.orders.Cancel(ctx, order.ID)
	suite.Require().NoError(err)
	suite.Equal(domain.OrderStatusCancelled, again.Status)

	afterSecondCancel, err := suite.items.Get(ctx, item.ID)
	suite.Require().NoError(err)
	suite.Equal(int32(5), afterSecondCancel.Stock)
}

func (suite *OrderLifecycleTestSuite) TestCancelShippedOrderConflicts() {
	ctx := context.Background()

	item := suite.seedItem("tablet", 60000, 2)

	order, err := suite.orders.Create(ctx, []orders.CreateLine{
		{ItemID: item.ID, Qty: 1},
	})
	suite.Require().NoError(err)

	_, err = suite.orders.Ship(ctx, order.ID)
	suite.Require().NoError(err)

	_, err = suite.orders.Cancel(ctx, order.ID)
	suite.Require().Error(err)
	suite.True(domain.IsConflict(err))

	// Отгруженный заказ не возвращает остаток
	after, err := suite.items.Get(ctx, item.ID)
	suite.Require().NoError(err)
	suite.Equal(int32(1), after.Stock)
}

func (suite *OrderLifecycleTestSuite) TestOutOfStockRollsBackWholeOrder() {
	ctx := context.Background()

	available := suite.seedItem("keyboard", 4000, 10)
	scarce := suite.seedItem("webcam", 8000, 1)

	_, err := suite.orders.Create(ctx, []orders.CreateLine{
		{ItemID: available.ID, Qty: 2},
		{ItemID: scarce.ID, Qty: 5},
	})
	suite.Require().Error(err)
	suite.True(domain.IsConflict(err))

	// Ничего не списано, заказов и событий нет
	availableAfter, err := suite.items.Get(ctx, available.ID)
	suite.Require().NoError(err)
	suite.Equal(int32(10), availableAfter.Stock)

	list, err := suite.orders.List(ctx)
	suite.Require().NoError(err)
	suite.Empty(list)

	pending, err := suite.store.Outbox().PullPending(ctx, 10)
	suite.Require().NoError(err)
	suite.Empty(pending)
}

func (suite *OrderLifecycleTestSuite) TestTotalImmutableAfterItemChanges() {
	ctx := context.Background()

	item := suite.seedItem("headset", 12000, 4)

	order, err := suite.orders.Create(ctx, []orders.CreateLine{
		{ItemID: item.ID, Qty: 2},
	})
	suite.Require().NoError(err)
	suite.Equal(int64(24000), order.TotalMinor)

	// Удаляем товар из каталога: заказ хранит собственный снапшот цены
	suite.Require().NoError(suite.items.Delete(ctx, item.ID))

	reloaded, err := suite.orders.Get(ctx, order.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(24000), reloaded.TotalMinor)
	suite.Require().Len(reloaded.Lines, 1)
	suite.Equal(int64(12000), reloaded.Lines[0].UnitPriceMinor)
}

func (suite *OrderLifecycleTestSuite) TestListOrdersNewestFirst() {
	ctx := context.Background()

	item := suite.seedItem("charger", 2500, 10)

	first, err := suite.orders.Create(ctx, []orders.CreateLine{{ItemID: item.ID, Qty: 1}})
	suite.Require().NoError(err)
	second, err := suite.orders.Create(ctx, []orders.CreateLine{{ItemID: item.ID, Qty: 1}})
	suite.Require().NoError(err)

	list, err := suite.orders.List(ctx)
	suite.Require().NoError(err)
	suite.Require().Len(list, 2)
	suite.Equal(second.ID, list[0].ID)
	suite.Equal(first.ID, list[1].ID)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}

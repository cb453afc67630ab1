package domain

import "context"

// ItemRepository описывает требования к хранилищу товаров.
//
// ReserveStock и ReleaseStock — единственные операции, меняющие остаток.
// ReserveStock обязан выполняться как условная запись "уменьшить остаток и
// поднять версию, только если остатка хватает" атомарно на стороне хранилища:
// проверка достаточности и мутация не разделяются на чтение и запись.
type ItemRepository interface {
	// Create сохраняет новый товар. Возвращает ErrItemAlreadyExists при повторе ID.
	Create(ctx context.Context, item Item) error
	// Get возвращает товар по идентификатору или ErrItemNotFound.
	Get(ctx context.Context, id string) (Item, error)
	// GetBatch возвращает найденные товары по списку идентификаторов.
	// Отсутствующие ID в результат не попадают; это забота вызывающего.
	GetBatch(ctx context.Context, ids []string) (map[string]Item, error)
	// List возвращает все товары, новые первыми.
	List(ctx context.Context) ([]Item, error)
	// Delete удаляет товар или возвращает ErrItemNotFound.
	Delete(ctx context.Context, id string) error
	// ReserveStock уменьшает остаток на qty условной записью.
	// Если строка не изменена (мало остатка или товара нет) — ErrStockChanged.
	ReserveStock(ctx context.Context, id string, qty int32) error
	// ReleaseStock безусловно возвращает qty на остаток и поднимает версию.
	// Отсутствие товара здесь означает нарушение ссылочной целостности
	// и возвращается как ErrItemNotFound, а не как бизнес-ошибка.
	ReleaseStock(ctx context.Context, id string, qty int32) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает все заказы с позициями, новые первыми.
	List(ctx context.Context) ([]Order, error)
	// Save применяет обновление статуса с учётом optimistic locking по версии.
	Save(ctx context.Context, order Order) error
}

// Tx — репозитории, привязанные к одной открытой транзакции.
// Мутации, выполненные через Tx, не видны другим операциям до коммита.
type Tx interface {
	Items() ItemRepository
	Orders() OrderRepository
	Outbox() OutboxRepository
}

// Store — транзакционное хранилище сервиса.
//
// WithinTx открывает одну атомарную единицу работы: fn получает Tx, и либо все
// выполненные через него записи фиксируются, либо (при ошибке fn или коммита)
// откатываются целиком. Границей атомарности для многострочного заказа
// является именно транзакция, а не отдельные вызовы ReserveStock.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// Нетранзакционный доступ для read-проекций и одиночных операций.
	Items() ItemRepository
	Orders() OrderRepository
	Outbox() OutboxRepository
	Timeline() TimelineRepository
	Idempotency() IdempotencyRepository
}

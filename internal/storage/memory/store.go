package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// state — полное содержимое in-memory хранилища.
// Все мутации выполняются только над копией состояния внутри транзакции.
type state struct {
	items  map[string]domain.Item
	orders map[string]domain.Order
	outbox []*outboxRecord
}

func newState() *state {
	return &state{
		items:  make(map[string]domain.Item),
		orders: make(map[string]domain.Order),
	}
}

// clone делает глубокую копию состояния для транзакционного черновика.
func (st *state) clone() *state {
	dst := &state{
		items:  make(map[string]domain.Item, len(st.items)),
		orders: make(map[string]domain.Order, len(st.orders)),
		outbox: make([]*outboxRecord, 0, len(st.outbox)),
	}
	for id, item := range st.items {
		dst.items[id] = item
	}
	for id, order := range st.orders {
		dst.orders[id] = cloneOrder(order)
	}
	for _, rec := range st.outbox {
		recCopy := *rec
		recCopy.msg.Payload = append([]byte(nil), rec.msg.Payload...)
		dst.outbox = append(dst.outbox, &recCopy)
	}
	return dst
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Lines = append([]domain.OrderLine(nil), src.Lines...)
	return dst
}

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
//
// Транзакция реализована как снапшот: WithinTx берёт эксклюзивную блокировку,
// копирует состояние и отдаёт fn репозитории поверх копии. Успешное завершение
// публикует копию как новое состояние, ошибка отбрасывает копию целиком.
// Транзакции сериализуются, поэтому наблюдаемая семантика условной записи
// совпадает с Postgres-реализацией.
type Store struct {
	mu    sync.RWMutex
	state *state

	timeline    domain.TimelineRepository
	idempotency domain.IdempotencyRepository
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		state:       newState(),
		timeline:    NewTimelineRepository(),
		idempotency: NewIdempotencyRepository(),
	}
}

// WithinTx выполняет fn как одну атомарную единицу работы.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	tx := &storeTx{st: draft}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = draft
	return nil
}

// Items возвращает нетранзакционный доступ к товарам.
func (s *Store) Items() domain.ItemRepository { return &itemRepository{v: &storeView{s: s}} }

// Orders возвращает нетранзакционный доступ к заказам.
func (s *Store) Orders() domain.OrderRepository { return &orderRepository{v: &storeView{s: s}} }

// Outbox возвращает нетранзакционный доступ к outbox (используется воркером публикации).
func (s *Store) Outbox() domain.OutboxRepository { return &outboxRepository{v: &storeView{s: s}} }

// Timeline возвращает хранилище событий жизненного цикла заказов.
func (s *Store) Timeline() domain.TimelineRepository { return s.timeline }

// Idempotency возвращает хранилище ключей идемпотентности.
func (s *Store) Idempotency() domain.IdempotencyRepository { return s.idempotency }

// storeTx — репозитории, работающие с транзакционным черновиком состояния.
type storeTx struct {
	st *state
}

func (t *storeTx) Items() domain.ItemRepository   { return &itemRepository{v: &txView{st: t.st}} }
func (t *storeTx) Orders() domain.OrderRepository { return &orderRepository{v: &txView{st: t.st}} }
func (t *storeTx) Outbox() domain.OutboxRepository {
	return &outboxRepository{v: &txView{st: t.st}}
}

// view абстрагирует доступ к состоянию: либо под блокировкой хранилища,
// либо напрямую к черновику открытой транзакции.
type view interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

type storeView struct {
	s *Store
}

func (v *storeView) read(fn func(st *state) error) error {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return fn(v.s.state)
}

func (v *storeView) write(fn func(st *state) error) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.state)
}

// txView работает без блокировок: WithinTx уже держит эксклюзивную блокировку.
type txView struct {
	st *state
}

func (v *txView) read(fn func(st *state) error) error  { return fn(v.st) }
func (v *txView) write(fn func(st *state) error) error { return fn(v.st) }

func nowUTC() time.Time { return time.Now().UTC() }

var _ domain.Store = (*Store)(nil)
var _ domain.Tx = (*storeTx)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// querier покрывает общие методы *sql.DB и *sql.Tx: репозитории пишутся один
// раз и работают как напрямую, так и внутри открытой транзакции.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store реализует domain.Store поверх PostgreSQL.
type Store struct {
	db          *sql.DB
	items       *itemRepository
	orders      *orderRepository
	outbox      *outboxRepository
	timeline    *timelineRepository
	idempotency *idempotencyRepository
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return newStore(db), nil
}

func newStore(db *sql.DB) *Store {
	return &Store{
		db:          db,
		items:       &itemRepository{q: db},
		orders:      &orderRepository{q: db},
		outbox:      &outboxRepository{q: db},
		timeline:    &timelineRepository{q: db},
		idempotency: &idempotencyRepository{q: db},
	}
}

// storeTx связывает репозитории с одной открытой транзакцией.
type storeTx struct {
	items  *itemRepository
	orders *orderRepository
	outbox *outboxRepository
}

func (t *storeTx) Items() domain.ItemRepository    { return t.items }
func (t *storeTx) Orders() domain.OrderRepository  { return t.orders }
func (t *storeTx) Outbox() domain.OutboxRepository { return t.outbox }

// WithinTx выполняет fn в одной транзакции БД: либо все записи зафиксированы,
// либо транзакция откатывается целиком.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &storeTx{
		items:  &itemRepository{q: sqlTx},
		orders: &orderRepository{q: sqlTx},
		outbox: &outboxRepository{q: sqlTx},
	}

	if err := fn(wrapped); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Items возвращает нетранзакционный репозиторий товаров.
func (s *Store) Items() domain.ItemRepository { return s.items }

// Orders возвращает нетранзакционный репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository { return s.orders }

// Outbox возвращает нетранзакционный репозиторий outbox.
func (s *Store) Outbox() domain.OutboxRepository { return s.outbox }

// Timeline возвращает репозиторий событий жизненного цикла заказов.
func (s *Store) Timeline() domain.TimelineRepository { return s.timeline }

// Idempotency возвращает репозиторий idempotency-ключей.
func (s *Store) Idempotency() domain.IdempotencyRepository { return s.idempotency }

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB { return s.db }

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.Store = (*Store)(nil)

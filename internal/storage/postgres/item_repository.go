package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

type itemRepository struct {
	q querier
}

func (r *itemRepository) Create(ctx context.Context, item domain.Item) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO items (
			id, name, price_minor, stock, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		item.ID, item.Name, item.PriceMinor, item.Stock,
		item.Version, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrItemAlreadyExists
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *itemRepository) Get(ctx context.Context, id string) (domain.Item, error) {
	var item domain.Item
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, price_minor, stock, version, created_at, updated_at
		FROM items
		WHERE id = $1
	`, id).Scan(
		&item.ID, &item.Name, &item.PriceMinor, &item.Stock,
		&item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, domain.ErrItemNotFound
		}
		return domain.Item{}, fmt.Errorf("select item: %w", err)
	}
	return item, nil
}

func (r *itemRepository) GetBatch(ctx context.Context, ids []string) (map[string]domain.Item, error) {
	result := make(map[string]domain.Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		placeholders = append(placeholders, "$"+strconv.Itoa(i+1))
		args = append(args, id)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, price_minor, stock, version, created_at, updated_at
		FROM items
		WHERE id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("select items batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(
			&item.ID, &item.Name, &item.PriceMinor, &item.Stock,
			&item.Version, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		result[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}

	return result, nil
}

func (r *itemRepository) List(ctx context.Context) ([]domain.Item, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, price_minor, stock, version, created_at, updated_at
		FROM items
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(
			&item.ID, &item.Name, &item.PriceMinor, &item.Stock,
			&item.Version, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}

	return items, nil
}

func (r *itemRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// ReserveStock выполняет условное списание: проверка остатка и декремент —
// одна атомарная запись. Ноль затронутых строк означает, что остатка не
// хватило (или товар исчез) к моменту записи.
func (r *itemRepository) ReserveStock(ctx context.Context, id string, qty int32) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE items
		SET stock = stock - $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $1
		  AND stock >= $2
	`, id, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrStockChanged
	}
	return nil
}

func (r *itemRepository) ReleaseStock(ctx context.Context, id string, qty int32) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE items
		SET stock = stock + $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $1
	`, id, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

var _ domain.ItemRepository = (*itemRepository)(nil)

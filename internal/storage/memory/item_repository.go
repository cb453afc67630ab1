package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// itemRepository — in-memory реализация ItemRepository поверх view.
type itemRepository struct {
	v view
}

func (r *itemRepository) Create(_ context.Context, item domain.Item) error {
	return r.v.write(func(st *state) error {
		if _, exists := st.items[item.ID]; exists {
			return domain.ErrItemAlreadyExists
		}
		st.items[item.ID] = item
		return nil
	})
}

func (r *itemRepository) Get(_ context.Context, id string) (domain.Item, error) {
	var item domain.Item
	err := r.v.read(func(st *state) error {
		stored, ok := st.items[id]
		if !ok {
			return domain.ErrItemNotFound
		}
		item = stored
		return nil
	})
	return item, err
}

func (r *itemRepository) GetBatch(_ context.Context, ids []string) (map[string]domain.Item, error) {
	result := make(map[string]domain.Item, len(ids))
	err := r.v.read(func(st *state) error {
		for _, id := range ids {
			if item, ok := st.items[id]; ok {
				result[id] = item
			}
		}
		return nil
	})
	return result, err
}

func (r *itemRepository) List(_ context.Context) ([]domain.Item, error) {
	var result []domain.Item
	err := r.v.read(func(st *state) error {
		result = make([]domain.Item, 0, len(st.items))
		for _, item := range st.items {
			result = append(result, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

func (r *itemRepository) Delete(_ context.Context, id string) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.items[id]; !ok {
			return domain.ErrItemNotFound
		}
		delete(st.items, id)
		return nil
	})
}

// ReserveStock выполняет условное списание: проверка остатка и мутация —
// одна операция под блокировкой, читающий-пишущий разрыв невозможен.
func (r *itemRepository) ReserveStock(_ context.Context, id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}
	return r.v.write(func(st *state) error {
		item, ok := st.items[id]
		if !ok || item.Stock < qty {
			return domain.ErrStockChanged
		}
		item.Stock -= qty
		item.Version++
		item.UpdatedAt = nowUTC()
		st.items[id] = item
		return nil
	})
}

// ReleaseStock возвращает списанное количество на остаток.
func (r *itemRepository) ReleaseStock(_ context.Context, id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}
	return r.v.write(func(st *state) error {
		item, ok := st.items[id]
		if !ok {
			return domain.ErrItemNotFound
		}
		item.Stock += qty
		item.Version++
		item.UpdatedAt = nowUTC()
		st.items[id] = item
		return nil
	})
}

var _ domain.ItemRepository = (*itemRepository)(nil)

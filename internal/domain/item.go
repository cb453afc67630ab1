package domain

import "time"

// MaxItemNameLength ограничивает длину названия товара при создании.
const MaxItemNameLength = 200

// Item описывает товарную позицию на складе.
type Item struct {
	ID string
	// Name — человекочитаемое название товара.
	Name string
	// PriceMinor — актуальная цена за единицу в минимальных денежных единицах.
	// Исторические заказы на изменение цены не реагируют: у строк заказа свой снапшот.
	PriceMinor int64
	// Stock — доступный остаток. Инвариант хранилища: никогда не опускается ниже нуля.
	Stock int32
	// Version увеличивается на единицу при каждой успешной мутации остатка.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет корректность полей товара и возвращает список замечаний.
func (i *Item) ValidateInvariants() []error {
	var errs []error

	if i.Name == "" {
		errs = append(errs, ErrItemNameRequired)
	}
	if len(i.Name) > MaxItemNameLength {
		errs = append(errs, ErrItemNameTooLong)
	}
	if i.PriceMinor < 0 {
		errs = append(errs, ErrItemPriceNegative)
	}
	if i.Stock < 0 {
		errs = append(errs, ErrItemStockNegative)
	}

	return errs
}

package domain

import "errors"

var (
	// Ошибка отсутствующего названия товара.
	ErrItemNameRequired = errors.New("item name is required")
	// Ошибка превышения максимальной длины названия товара.
	ErrItemNameTooLong = errors.New("item name is too long")
	// Ошибка отрицательной цены товара.
	ErrItemPriceNegative = errors.New("item price must be non-negative")
	// Ошибка отрицательного стартового остатка.
	ErrItemStockNegative = errors.New("item stock must be non-negative")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrOrderLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной суммы заказа.
	ErrOrderTotalNegative = errors.New("order total must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrOrderTotalMismatch = errors.New("order total does not match lines sum")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrLineItemIDRequired = errors.New("line item_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrLineQtyInvalid = errors.New("line qty must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrLinePriceNegative = errors.New("line unit price must be non-negative")

	// ErrItemNotFound возвращается, если товар не найден в хранилище.
	ErrItemNotFound = errors.New("item not found")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrItemAlreadyExists сигнализирует о повторной вставке товара с тем же ID.
	ErrItemAlreadyExists = errors.New("item already exists")
	// ErrOrderAlreadyExists сигнализирует о повторной вставке заказа с тем же ID.
	ErrOrderAlreadyExists = errors.New("order already exists")

	// ErrOutOfStock — остатка недостаточно для запрошенного количества.
	ErrOutOfStock = errors.New("out of stock")
	// ErrStockChanged — условная запись не нашла строку: остаток изменился
	// между чтением и резервированием (или товар исчез). Клиент может повторить запрос.
	ErrStockChanged = errors.New("stock changed, retry")
	// ErrOrderShipped — отгруженный заказ отменить нельзя.
	ErrOrderShipped = errors.New("cannot cancel shipped order")
	// ErrOrderNotShippable — отгрузка допустима только из статуса created.
	ErrOrderNotShippable = errors.New("order cannot be shipped in its current status")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")
)

// IsNotFound проверяет, относится ли ошибка к классу "сущность отсутствует".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrOrderNotFound)
}

// IsConflict проверяет, относится ли ошибка к классу конфликтов:
// нехватка остатка, проигранная гонка за остаток или запрещённый переход статуса.
func IsConflict(err error) bool {
	for _, target := range []error{
		ErrOutOfStock,
		ErrStockChanged,
		ErrOrderShipped,
		ErrOrderNotShippable,
		ErrOrderVersionConflict,
		ErrItemAlreadyExists,
		ErrOrderAlreadyExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation проверяет, относится ли ошибка к нарушениям формата входных данных.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrItemNameRequired,
		ErrItemNameTooLong,
		ErrItemPriceNegative,
		ErrItemStockNegative,
		ErrOrderLinesRequired,
		ErrOrderTotalNegative,
		ErrOrderTotalMismatch,
		ErrLineItemIDRequired,
		ErrLineQtyInvalid,
		ErrLinePriceNegative,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

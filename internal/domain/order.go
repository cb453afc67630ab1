package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusCreated — заказ создан, остаток под него зарезервирован.
	OrderStatusCreated OrderStatus = "created"
	// OrderStatusCancelled — заказ отменён, резерв возвращён на склад. Терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusShipped — заказ отгружен. Терминальный статус, отмена запрещена.
	OrderStatusShipped OrderStatus = "shipped"
)

// OrderLine представляет одну позицию заказа.
type OrderLine struct {
	ID      string
	OrderID string
	// ItemID — ссылка на товар. Строка не владеет товаром: товар может быть
	// удалён или переоценён, позиция заказа при этом не меняется.
	ItemID string
	// Qty — количество единиц товара, строго положительное.
	Qty int32
	// UnitPriceMinor — снапшот цены товара на момент создания заказа.
	UnitPriceMinor int64
	CreatedAt      time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID     string
	Status OrderStatus
	// TotalMinor фиксируется при создании как сумма qty*unit_price по позициям
	// и никогда не пересчитывается.
	TotalMinor int64
	Lines      []OrderLine
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CancelOutcome описывает исход попытки отмены для конкретного статуса заказа.
type CancelOutcome int

const (
	// CancelProceed — отмена разрешена, требуется компенсирующий возврат остатка.
	CancelProceed CancelOutcome = iota
	// CancelNoop — заказ уже отменён; операция успешна, но ничего не делает.
	CancelNoop
	// CancelForbidden — статус терминальный, отмена невозможна.
	CancelForbidden
)

// cancelTransitions — явная таблица переходов для операции отмены.
// Статус без записи в таблице по умолчанию считается неотменяемым,
// чтобы расширение жизненного цикла не обходило правило терминальности.
var cancelTransitions = map[OrderStatus]CancelOutcome{
	OrderStatusCreated:   CancelProceed,
	OrderStatusCancelled: CancelNoop,
	OrderStatusShipped:   CancelForbidden,
}

// DecideCancel возвращает исход отмены для текущего статуса заказа.
func DecideCancel(status OrderStatus) CancelOutcome {
	outcome, ok := cancelTransitions[status]
	if !ok {
		return CancelForbidden
	}
	return outcome
}

// CanShip сообщает, допустим ли переход в статус shipped.
// Отгрузить можно только свежесозданный заказ.
func CanShip(status OrderStatus) bool {
	return status == OrderStatusCreated
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Lines) == 0 {
		errs = append(errs, ErrOrderLinesRequired)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrOrderTotalNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * unit_price.
	var calc int64
	for _, line := range o.Lines {
		if line.ItemID == "" {
			errs = append(errs, ErrLineItemIDRequired)
		}
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrLinePriceNegative)
		}
		calc += int64(line.Qty) * line.UnitPriceMinor
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrOrderTotalMismatch)
	}

	return errs
}

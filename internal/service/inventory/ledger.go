package inventory

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// Ledger выполняет движения остатков внутри открытой транзакции.
//
// Ledger не берёт собственных блокировок: безопасность под конкуренцией
// обеспечивает условная запись хранилища (ReserveStock), а атомарность
// многострочных заказов — объемлющая транзакция.
type Ledger struct {
	logger *log.Entry
}

// NewLedger создаёт ledger с заданным logger.
func NewLedger(logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-ledger")
	}
	return &Ledger{logger: logger}
}

// Reserve списывает qty единиц товара условной записью.
// Проигранная гонка или исчезнувший товар приходят как domain.ErrStockChanged;
// вызывающий обязан откатить всю транзакцию.
func (l *Ledger) Reserve(ctx context.Context, tx domain.Tx, itemID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	if err := tx.Items().ReserveStock(ctx, itemID, qty); err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"item_id": itemID,
			"qty":     qty,
		}).Warn("reserve failed")
		return err
	}

	l.logger.WithFields(log.Fields{
		"item_id": itemID,
		"qty":     qty,
	}).Debug("stock reserved")

	return nil
}

// Release возвращает qty единиц на остаток (компенсация отмены).
// Бизнес-причин для отказа нет: отсутствие товара, на который ссылается
// существующая позиция заказа, означает нарушение целостности данных.
func (l *Ledger) Release(ctx context.Context, tx domain.Tx, itemID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	if err := tx.Items().ReleaseStock(ctx, itemID, qty); err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"item_id": itemID,
			"qty":     qty,
		}).Error("release failed: order line references missing item")
		return fmt.Errorf("release %d units of item %s: %w", qty, itemID, err)
	}

	l.logger.WithFields(log.Fields{
		"item_id": itemID,
		"qty":     qty,
	}).Debug("stock released")

	return nil
}

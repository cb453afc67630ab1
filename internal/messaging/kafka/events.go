package kafka

import "time"

// EventType определяет тип события.
type EventType string

const (
	// События жизненного цикла заказа
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderCancelled EventType = "order.cancelled"
	EventTypeOrderShipped   EventType = "order.shipped"

	// События каталога
	EventTypeItemCreated EventType = "item.created"
	EventTypeItemDeleted EventType = "item.deleted"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "ims.order.events"
	TopicDeadLetterQueue = "ims.dlq" // Dead Letter Queue для failed messages
)

// OrderEvent представляет событие заказа.
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создаёт новое событие заказа.
func NewOrderEvent(eventType EventType, orderID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

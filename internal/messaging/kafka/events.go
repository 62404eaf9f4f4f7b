package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Topics для Kafka.
const (
	// TopicOrderHistory — входящий поток агрегатов для записи в историю.
	TopicOrderHistory = "orderhistory.orders"
	// TopicDeadLetterQueue — сообщения, не обработанные после всех retry.
	TopicDeadLetterQueue = "orderhistory.dlq"
)

// Kafka headers для retry-логики.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderItemPayload — позиция заказа в проводном формате.
type OrderItemPayload struct {
	SkuID     int64  `json:"sku_id"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// OrderPayload — агрегат заказа в проводном формате. Денежные суммы
// передаются десятичными строками, как и в HTTP API.
type OrderPayload struct {
	ID        int64              `json:"id"`
	ClientID  int64              `json:"client_id"`
	State     string             `json:"state"`
	Amount    string             `json:"amount"`
	CreatedAt time.Time          `json:"created_at"`
	Items     []OrderItemPayload `json:"items"`
}

// OrderHistoryEvent — событие входящего потока: пакет агрегатов,
// записываемый в историю атомарно.
type OrderHistoryEvent struct {
	EventID   string         `json:"event_id"`
	Orders    []OrderPayload `json:"orders"`
	Timestamp time.Time      `json:"timestamp"`
}

// ParseOrderHistoryEvent разбирает событие из сообщения Kafka.
func ParseOrderHistoryEvent(message *sarama.ConsumerMessage) (*OrderHistoryEvent, error) {
	var event OrderHistoryEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("unmarshal order history event: %w", err)
	}
	return &event, nil
}

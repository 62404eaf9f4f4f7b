// Package ingest принимает события с агрегатами заказов из Kafka
// и записывает их в хранилище истории.
package ingest

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-history/internal/domain"
	"github.com/vladislavdragonenkov/order-history/internal/messaging/kafka"
)

// Handler обрабатывает события входящего потока заказов.
type Handler struct {
	repo   domain.OrderRepository
	logger *log.Entry
}

// NewHandler создает handler, пишущий в указанный repository.
func NewHandler(repo domain.OrderRepository) *Handler {
	return &Handler{
		repo:   repo,
		logger: log.WithField("component", "ingest-handler"),
	}
}

// HandleMessage разбирает событие и атомарно добавляет пакет заказов.
// Ошибки валидации и разбора возвращаются наверх: после исчерпания
// retry consumer отправит сообщение в DLQ.
func (h *Handler) HandleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := kafka.ParseOrderHistoryEvent(message)
	if err != nil {
		return err
	}

	orders, err := EventToOrders(event)
	if err != nil {
		return err
	}

	if err := h.repo.Add(ctx, orders); err != nil {
		return fmt.Errorf("add orders from event %s: %w", event.EventID, err)
	}

	h.logger.WithFields(log.Fields{
		"event_id": event.EventID,
		"orders":   len(orders),
	}).Info("order batch ingested")
	return nil
}

// EventToOrders конвертирует проводной формат события в доменные агрегаты.
func EventToOrders(event *kafka.OrderHistoryEvent) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(event.Orders))
	for _, p := range event.Orders {
		order, err := payloadToOrder(p)
		if err != nil {
			return nil, fmt.Errorf("event %s, order %d: %w", event.EventID, p.ID, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func payloadToOrder(p kafka.OrderPayload) (domain.Order, error) {
	state, err := domain.ParseOrderState(p.State)
	if err != nil {
		return domain.Order{}, err
	}
	amount, err := domain.ParseMoney(p.Amount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("amount: %w", err)
	}

	items := make([]domain.Item, 0, len(p.Items))
	for _, it := range p.Items {
		price, err := domain.ParseMoney(it.UnitPrice)
		if err != nil {
			return domain.Order{}, fmt.Errorf("sku %d unit_price: %w", it.SkuID, err)
		}
		items = append(items, domain.Item{
			SkuID:     it.SkuID,
			Quantity:  it.Quantity,
			UnitPrice: price,
		})
	}

	return domain.Order{
		ID:        p.ID,
		ClientID:  p.ClientID,
		State:     state,
		Amount:    amount,
		CreatedAt: domain.NormalizeTime(p.CreatedAt),
		Items:     items,
	}, nil
}

package memory

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/order-history/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository для
// локальной разработки и тестов. Семантика повторяет PostgreSQL-
// реализацию, включая атомарность пакетной вставки и keyset-пагинацию.
type orderRepositoryInMemory struct {
	mu     sync.RWMutex
	orders map[int64]domain.Order
}

// NewOrderRepository возвращает пустой in-memory репозиторий.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		orders: make(map[int64]domain.Order),
	}
}

// Get отдаёт заказы по набору идентификаторов в порядке возрастания id
// (порядок хранилища).
func (r *orderRepositoryInMemory) Get(ctx context.Context, orderIDs []int64) iter.Seq2[domain.Order, error] {
	r.mu.RLock()
	result := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		if order, ok := r.orders[id]; ok {
			result = append(result, cloneOrder(order))
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return func(yield func(domain.Order, error) bool) {
		for _, order := range result {
			if err := ctx.Err(); err != nil {
				yield(domain.Order{}, err)
				return
			}
			if !yield(order, nil) {
				return
			}
		}
	}
}

// GetClientOrders отдаёт окно из pageSize заказов клиента с id строго
// меньше startFromOrderID, по убыванию id, развёрнутое в OrderRow.
func (r *orderRepositoryInMemory) GetClientOrders(ctx context.Context, clientID int64, pageSize int32, startFromOrderID int64) iter.Seq2[domain.OrderRow, error] {
	return func(yield func(domain.OrderRow, error) bool) {
		if clientID <= 0 {
			yield(domain.OrderRow{}, domain.ErrClientIDRequired)
			return
		}
		if pageSize < 0 {
			yield(domain.OrderRow{}, domain.ErrPageSizeNegative)
			return
		}
		if pageSize == 0 {
			return
		}

		r.mu.RLock()
		window := make([]domain.Order, 0, pageSize)
		for _, order := range r.orders {
			if order.ClientID == clientID && order.ID < startFromOrderID {
				window = append(window, cloneOrder(order))
			}
		}
		r.mu.RUnlock()

		sort.Slice(window, func(i, j int) bool { return window[i].ID > window[j].ID })
		if len(window) > int(pageSize) {
			window = window[:pageSize]
		}

		for _, order := range window {
			for _, row := range domain.FlattenOrder(order) {
				if err := ctx.Err(); err != nil {
					yield(domain.OrderRow{}, err)
					return
				}
				if !yield(row, nil) {
					return
				}
			}
		}
	}
}

// Add вставляет пакет атомарно: дубликаты ищутся до записи, поэтому
// при отказе ни один заказ пакета не становится видимым.
func (r *orderRepositoryInMemory) Add(ctx context.Context, orders []domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateAddBatch(orders); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int64]struct{}, len(orders))
	for _, order := range orders {
		if _, exists := r.orders[order.ID]; exists {
			return fmt.Errorf("%w: order %d", domain.ErrOrderAlreadyExists, order.ID)
		}
		if _, dup := seen[order.ID]; dup {
			return fmt.Errorf("%w: order %d occurs twice in batch", domain.ErrOrderAlreadyExists, order.ID)
		}
		seen[order.ID] = struct{}{}
	}

	for _, order := range orders {
		order.CreatedAt = domain.NormalizeTime(order.CreatedAt)
		r.orders[order.ID] = cloneOrder(order)
	}
	return nil
}

// cloneOrder копирует агрегат, чтобы защититься от мутаций извне.
func cloneOrder(order domain.Order) domain.Order {
	items := make([]domain.Item, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return order
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"time"

	"github.com/vladislavdragonenkov/order-history/internal/domain"
	"github.com/vladislavdragonenkov/order-history/internal/metrics"
)

const (
	opGet             = "get"
	opGetClientOrders = "get_client_orders"
	opAdd             = "add"
)

// Обе выборки отдают строки соединения orders x order_items.
// Для Get порядок по (o.id, i.id) гарантирует смежность строк одного
// заказа — на этом построена ленивая сборка агрегатов.
const selectOrdersByIDs = `
SELECT o.id, o.client_id, o.state, o.amount::text, o.created_at,
       i.sku_id, i.quantity, i.unit_price::text
FROM orders AS o
JOIN order_items AS i ON i.order_id = o.id
WHERE o.id = ANY($1)
ORDER BY o.id, i.id`

// Окно пагинации считается по заказам, не по строкам позиций: сначала
// pageSize идентификаторов ниже курсора по индексу
// (client_id, id DESC), затем соединение с позициями.
const selectClientOrderPage = `
SELECT o.id, o.client_id, o.state, o.amount::text, o.created_at,
       i.sku_id, i.quantity, i.unit_price::text
FROM (
    SELECT id, client_id, state, amount, created_at
    FROM orders
    WHERE client_id = $1 AND id < $2
    ORDER BY id DESC
    LIMIT $3
) AS o
JOIN order_items AS i ON i.order_id = o.id
ORDER BY o.id DESC, i.id`

const insertOrder = `
INSERT INTO orders (id, client_id, state, amount, created_at)
VALUES ($1, $2, $3, $4::numeric, $5)`

const insertOrderItem = `
INSERT INTO order_items (order_id, sku_id, quantity, unit_price)
VALUES ($1, $2, $3, $4::numeric)`

type orderRepository struct {
	db      *sql.DB
	metrics *metrics.StorageMetrics
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
// metrics может быть nil — тогда наблюдения не ведутся.
func NewOrderRepository(store *Store, m *metrics.StorageMetrics) domain.OrderRepository {
	return &orderRepository{db: store.DB(), metrics: m}
}

// Get отдаёт заказы по набору идентификаторов одной выборкой,
// собирая агрегаты на лету: заказ уходит вызывающему, как только в
// курсоре закончилась его серия строк.
func (r *orderRepository) Get(ctx context.Context, orderIDs []int64) iter.Seq2[domain.Order, error] {
	return func(yield func(domain.Order, error) bool) {
		started := time.Now()
		var opErr error
		defer func() { r.metrics.ObserveOp(opGet, started, opErr) }()

		if len(orderIDs) == 0 {
			return
		}

		rows, err := r.db.QueryContext(ctx, selectOrdersByIDs, orderIDs)
		if err != nil {
			opErr = classifyStorageErr(ctx, fmt.Errorf("select orders: %w", err))
			yield(domain.Order{}, opErr)
			return
		}

		r.metrics.StreamOpened()
		defer r.metrics.StreamClosed()

		for order, err := range domain.AssembleOrderSeq(streamRows(ctx, rows, scanJoinedRow)) {
			if err != nil {
				opErr = err
				yield(domain.Order{}, err)
				return
			}
			r.metrics.AddRowsStreamed(opGet, len(order.Items))
			if !yield(order, nil) {
				return
			}
		}
	}
}

// GetClientOrders отдаёт страницу истории клиента через keyset-
// пагинацию. startFromOrderID — эксклюзивная верхняя граница;
// domain.StartFromLatest снимает её. Следующая страница запрашивается
// с id последней отданной строки в качестве курсора: вставки выше
// курсора уже отданные страницы не сдвигают.
func (r *orderRepository) GetClientOrders(ctx context.Context, clientID int64, pageSize int32, startFromOrderID int64) iter.Seq2[domain.OrderRow, error] {
	return func(yield func(domain.OrderRow, error) bool) {
		started := time.Now()
		var opErr error
		defer func() { r.metrics.ObserveOp(opGetClientOrders, started, opErr) }()

		if clientID <= 0 {
			opErr = domain.ErrClientIDRequired
			yield(domain.OrderRow{}, opErr)
			return
		}
		if pageSize < 0 {
			opErr = domain.ErrPageSizeNegative
			yield(domain.OrderRow{}, opErr)
			return
		}
		if pageSize == 0 {
			return
		}

		rows, err := r.db.QueryContext(ctx, selectClientOrderPage, clientID, startFromOrderID, pageSize)
		if err != nil {
			opErr = classifyStorageErr(ctx, fmt.Errorf("select client orders: %w", err))
			yield(domain.OrderRow{}, opErr)
			return
		}

		r.metrics.StreamOpened()
		defer r.metrics.StreamClosed()

		for row, err := range streamRows(ctx, rows, scanJoinedRow) {
			if err != nil {
				opErr = err
				yield(domain.OrderRow{}, err)
				return
			}
			r.metrics.AddRowsStreamed(opGetClientOrders, 1)
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Add вставляет пакет агрегатов в одной транзакции: заголовки и
// позиции видны либо все, либо никакие. Повтор изнутри не выполняется,
// дубликат идентификатора отдаётся как ErrOrderAlreadyExists.
func (r *orderRepository) Add(ctx context.Context, orders []domain.Order) error {
	started := time.Now()
	var opErr error
	defer func() { r.metrics.ObserveOp(opAdd, started, opErr) }()

	if len(orders) == 0 {
		return nil
	}
	if err := domain.ValidateAddBatch(orders); err != nil {
		opErr = err
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		opErr = classifyStorageErr(ctx, fmt.Errorf("begin tx: %w", err))
		return opErr
	}
	defer func() {
		if opErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, order := range orders {
		if _, err := tx.ExecContext(ctx, insertOrder,
			order.ID, order.ClientID, int32(order.State),
			order.Amount.String(), domain.NormalizeTime(order.CreatedAt),
		); err != nil {
			opErr = classifyStorageErr(ctx, fmt.Errorf("insert order %d: %w", order.ID, err))
			return opErr
		}

		for _, item := range order.Items {
			if _, err := tx.ExecContext(ctx, insertOrderItem,
				order.ID, item.SkuID, item.Quantity, item.UnitPrice.String(),
			); err != nil {
				opErr = classifyStorageErr(ctx, fmt.Errorf("insert item for order %d: %w", order.ID, err))
				return opErr
			}
		}
	}

	if err := tx.Commit(); err != nil {
		opErr = classifyStorageErr(ctx, fmt.Errorf("commit add batch: %w", err))
		return opErr
	}
	return nil
}

func scanJoinedRow(rows *sql.Rows) (domain.OrderRow, error) {
	var (
		row       domain.OrderRow
		state     int32
		amountStr string
		priceStr  string
	)
	if err := rows.Scan(
		&row.OrderID, &row.ClientID, &state, &amountStr, &row.Date,
		&row.SkuID, &row.Quantity, &priceStr,
	); err != nil {
		return domain.OrderRow{}, err
	}
	row.State = domain.OrderState(state)

	var err error
	if row.Amount, err = domain.ParseMoney(amountStr); err != nil {
		return domain.OrderRow{}, fmt.Errorf("decode amount of order %d: %w", row.OrderID, err)
	}
	if row.Price, err = domain.ParseMoney(priceStr); err != nil {
		return domain.OrderRow{}, fmt.Errorf("decode price of order %d: %w", row.OrderID, err)
	}
	row.Date = domain.NormalizeTime(row.Date)

	return row, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)

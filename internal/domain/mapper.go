package domain

import (
	"fmt"
	"iter"
	"time"
)

// OrderRow — денормализованная строка соединения заказа с одной из его
// позиций: поля заголовка повторяются для каждой позиции. Это модель
// чтения для постраничной выдачи, она никогда не персистится.
type OrderRow struct {
	OrderID  int64
	ClientID int64
	State    OrderState
	Amount   Money
	Date     time.Time
	SkuID    int64
	Quantity int32
	Price    Money
}

func (r OrderRow) item() Item {
	return Item{SkuID: r.SkuID, Quantity: r.Quantity, UnitPrice: r.Price}
}

func orderFromRow(r OrderRow) Order {
	return Order{
		ID:        r.OrderID,
		ClientID:  r.ClientID,
		State:     r.State,
		Amount:    r.Amount,
		CreatedAt: r.Date,
		Items:     []Item{r.item()},
	}
}

// AssembleOrders группирует плоские строки соединения в агрегаты.
// Строки одного заказа могут приходить вразброс; порядок заказов в
// результате — порядок первого появления, порядок позиций внутри
// заказа — порядок чтения строк.
func AssembleOrders(rows []OrderRow) ([]Order, error) {
	index := make(map[int64]int, len(rows))
	orders := make([]Order, 0, len(rows))

	for _, row := range rows {
		if row.OrderID == 0 {
			return nil, fmt.Errorf("%w: sku %d", ErrItemWithoutOrder, row.SkuID)
		}
		if i, ok := index[row.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, row.item())
			continue
		}
		index[row.OrderID] = len(orders)
		orders = append(orders, orderFromRow(row))
	}

	return orders, nil
}

// AssembleOrderSeq — ленивый вариант сборки для потоков, в которых
// запрос гарантирует смежность строк одного заказа. Заказ отдаётся,
// как только закончилась его серия строк; последний — по исчерпанию
// источника. Повторное появление уже отданного заказа — нарушение
// контракта запроса.
func AssembleOrderSeq(rows iter.Seq2[OrderRow, error]) iter.Seq2[Order, error] {
	return func(yield func(Order, error) bool) {
		var (
			current Order
			open    bool
		)
		seen := make(map[int64]struct{})

		for row, err := range rows {
			if err != nil {
				yield(Order{}, err)
				return
			}
			if row.OrderID == 0 {
				yield(Order{}, fmt.Errorf("%w: sku %d", ErrItemWithoutOrder, row.SkuID))
				return
			}
			if open && row.OrderID == current.ID {
				current.Items = append(current.Items, row.item())
				continue
			}
			if open && !yield(current, nil) {
				return
			}
			if _, dup := seen[row.OrderID]; dup {
				yield(Order{}, fmt.Errorf("%w: order %d", ErrOrderRowsSplit, row.OrderID))
				return
			}
			seen[row.OrderID] = struct{}{}
			current = orderFromRow(row)
			open = true
		}

		if open {
			yield(current, nil)
		}
	}
}

// FlattenOrder раскладывает агрегат в строки выдачи: по одной на
// позицию, заголовок повторяется.
func FlattenOrder(order Order) []OrderRow {
	rows := make([]OrderRow, 0, len(order.Items))
	for _, item := range order.Items {
		rows = append(rows, OrderRow{
			OrderID:  order.ID,
			ClientID: order.ClientID,
			State:    order.State,
			Amount:   order.Amount,
			Date:     order.CreatedAt,
			SkuID:    item.SkuID,
			Quantity: item.Quantity,
			Price:    item.UnitPrice,
		})
	}
	return rows
}

package domain

import "time"

// OrderState описывает состояние заказа в истории.
// Состояния хранятся и читаются как есть: сервис истории не
// вычисляет переходы, их источник — внешняя система оформления.
type OrderState int32

const (
	OrderStateUnknown OrderState = iota
	OrderStateCreated
	OrderStatePaid
	OrderStateBoxing
	OrderStateWaitForPickup
	OrderStateInDelivery
	OrderStateWaitForClient
	OrderStateCompleted
	OrderStateCancelled
)

var orderStateNames = map[OrderState]string{
	OrderStateUnknown:       "unknown",
	OrderStateCreated:       "created",
	OrderStatePaid:          "paid",
	OrderStateBoxing:        "boxing",
	OrderStateWaitForPickup: "wait_for_pickup",
	OrderStateInDelivery:    "in_delivery",
	OrderStateWaitForClient: "wait_for_client",
	OrderStateCompleted:     "completed",
	OrderStateCancelled:     "cancelled",
}

// String возвращает текстовое имя состояния для логов и API.
func (s OrderState) String() string {
	if name, ok := orderStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseOrderState восстанавливает состояние из текстового имени.
func ParseOrderState(name string) (OrderState, error) {
	for state, stateName := range orderStateNames {
		if stateName == name {
			return state, nil
		}
	}
	return OrderStateUnknown, ErrStateUnknown
}

// Item представляет одну позицию заказа. Позиция принадлежит ровно
// одному заказу и не имеет собственной идентичности вне него.
type Item struct {
	// SkuID — внешний идентификатор товара.
	SkuID int64
	// Quantity — количество единиц товара, строго положительное.
	Quantity int32
	// UnitPrice — цена за единицу.
	UnitPrice Money
}

// Order агрегирует заказ вместе с его позициями.
// ID назначается источником при создании; после записи в историю
// агрегат не мутирует.
type Order struct {
	ID        int64
	ClientID  int64
	State     OrderState
	Amount    Money
	CreatedAt time.Time
	Items     []Item
}

// ValidateInvariants проверяет базовые инварианты агрегата и
// возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ID <= 0 {
		errs = append(errs, ErrOrderIDRequired)
	}
	if o.ClientID <= 0 {
		errs = append(errs, ErrClientIDRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.Amount < 0 {
		errs = append(errs, ErrAmountInvalid)
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	return errs
}

package domain

import (
	"context"
	"errors"
)

var (
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order id is required")
	// Ошибка отсутствующего идентификатора клиента.
	ErrClientIDRequired = errors.New("client id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrItemPriceInvalid = errors.New("item unit price must be non-negative")
	// Ошибка отрицательной суммы заказа.
	ErrAmountInvalid = errors.New("order amount must be non-negative")
	// Ошибка отрицательного размера страницы.
	ErrPageSizeNegative = errors.New("page size must be non-negative")
	// Ошибка неизвестного имени состояния заказа.
	ErrStateUnknown = errors.New("unknown order state")
	// Ошибка разбора денежной суммы.
	ErrMoneyInvalid = errors.New("invalid money amount")

	// ErrOrderAlreadyExists возвращается, когда хранилище отклоняет
	// вставку из-за дубликата идентификатора заказа.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrStorageUnavailable означает, что хранилище недоступно или
	// соединение потеряно посреди операции. Повтор — решение вызывающего.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrItemWithoutOrder — строка позиции без заголовка заказа.
	// Указывает на расхождение запроса и схемы.
	ErrItemWithoutOrder = errors.New("item row references no order header")
	// ErrOrderRowsSplit — строки одного заказа пришли несмежно там,
	// где запрос обязан их кластеризовать.
	ErrOrderRowsSplit = errors.New("order rows are not contiguous")
)

// Классы ошибок для метрик и маппинга в коды ответов.
const (
	ErrorClassValidation   = "validation"
	ErrorClassPersistence  = "persistence"
	ErrorClassConnectivity = "connectivity"
	ErrorClassMapping      = "mapping"
	ErrorClassCancelled    = "cancelled"
	ErrorClassInternal     = "internal"
)

// ErrorClass относит ошибку к одному из классов таксономии.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassCancelled
	case errors.Is(err, ErrOrderAlreadyExists):
		return ErrorClassPersistence
	case errors.Is(err, ErrStorageUnavailable):
		return ErrorClassConnectivity
	case errors.Is(err, ErrItemWithoutOrder), errors.Is(err, ErrOrderRowsSplit):
		return ErrorClassMapping
	case errors.Is(err, ErrOrderIDRequired),
		errors.Is(err, ErrClientIDRequired),
		errors.Is(err, ErrItemsRequired),
		errors.Is(err, ErrItemQtyInvalid),
		errors.Is(err, ErrItemPriceInvalid),
		errors.Is(err, ErrAmountInvalid),
		errors.Is(err, ErrPageSizeNegative),
		errors.Is(err, ErrStateUnknown),
		errors.Is(err, ErrMoneyInvalid):
		return ErrorClassValidation
	default:
		return ErrorClassInternal
	}
}

// IsCancellation проверяет, что ошибка вызвана сигналом отмены,
// а не отказом хранилища.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

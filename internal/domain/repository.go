package domain

import (
	"context"
	"iter"
	"math"
)

// StartFromLatest — сентинел курсора: выдача начинается с самого
// свежего заказа клиента, верхняя граница не применяется.
const StartFromLatest int64 = math.MaxInt64

// OrderRepository описывает требования к хранилищу истории заказов.
// Потоковые методы отдают результаты лениво: строки читаются из
// курсора по мере потребления, полный результат не материализуется.
// Ошибка посреди потока завершает его; всё отданное до неё валидно.
type OrderRepository interface {
	// Get возвращает заказы с идентификаторами из orderIDs.
	// Пустой набор — пустая выдача, не ошибка. Порядок результата
	// определяется хранилищем, но каждый заказ отдаётся целиком,
	// со всеми позициями.
	Get(ctx context.Context, orderIDs []int64) iter.Seq2[Order, error]

	// GetClientOrders возвращает строки истории клиента через keyset-
	// пагинацию: окно из pageSize заказов с id строго меньше
	// startFromOrderID, по убыванию id, развёрнутое в OrderRow.
	// pageSize считает заказы, не строки. pageSize == 0 — пустая
	// выдача. Для первой страницы передаётся StartFromLatest.
	GetClientOrders(ctx context.Context, clientID int64, pageSize int32, startFromOrderID int64) iter.Seq2[OrderRow, error]

	// Add вставляет пакет агрегатов в одной транзакции: виден либо
	// весь пакет, либо ничего. Идентификаторы назначает источник;
	// дубликат — ErrOrderAlreadyExists.
	Add(ctx context.Context, orders []Order) error
}

// ValidateAddBatch проверяет пакет перед записью. Нарушения инвариантов
// отклоняются до обращения к хранилищу.
func ValidateAddBatch(orders []Order) error {
	for i := range orders {
		if errs := orders[i].ValidateInvariants(); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"iter"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/order-history/internal/domain"
)

// streamRows оборачивает живой курсор в ленивую последовательность.
// Строки читаются по требованию потребителя, полный результат не
// буферизуется. Курсор закрывается на любом пути выхода: исчерпание,
// ошибка, отмена контекста и досрочный break потребителя. Курсор
// однопроходный; повторный вызов метода репозитория открывает новый.
func streamRows[T any](ctx context.Context, rows *sql.Rows, scan func(*sql.Rows) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer rows.Close()

		var zero T
		for rows.Next() {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			value, err := scan(rows)
			if err != nil {
				yield(zero, classifyStorageErr(ctx, fmt.Errorf("scan row: %w", err)))
				return
			}
			if !yield(value, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, classifyStorageErr(ctx, fmt.Errorf("iterate rows: %w", err)))
		}
	}
}

// classifyStorageErr относит ошибку драйвера к таксономии домена.
// Отмена контекста имеет приоритет: оборванный запрос часто выглядит
// как сетевая ошибка, но вызывающий должен видеть именно отмену.
func classifyStorageErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if domain.IsCancellation(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return fmt.Errorf("%w: %s", domain.ErrOrderAlreadyExists, pgErr.Detail)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == pgConnectionErrClass:
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	return err
}

const (
	pgUniqueViolation    = "23505"
	pgConnectionErrClass = "08"
)

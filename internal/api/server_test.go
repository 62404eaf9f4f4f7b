package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/order-history/internal/domain"
	"github.com/vladislavdragonenkov/order-history/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(memory.NewOrderRepository(), nil)
}

func seedTestServer(t *testing.T) *Server {
	t.Helper()
	s := newTestServer(t)

	body := addOrdersRequest{}
	for n := int64(1); n <= 4; n++ {
		items := make([]itemPayload, 0, n)
		for m := int64(1); m <= n; m++ {
			items = append(items, itemPayload{
				SkuID:     n*1000 + m,
				Quantity:  int32(n*10 + m),
				UnitPrice: fmt.Sprintf("%d.00", n*100+m),
			})
		}
		body.Orders = append(body.Orders, orderPayload{
			ID:        n,
			ClientID:  123456,
			State:     "created",
			Amount:    fmt.Sprintf("%d.00", n*1000),
			CreatedAt: time.Date(2000+int(n), time.Month(n), int(n), int(n), int(n), int(n), 0, time.UTC),
			Items:     items,
		})
	}

	resp := doJSON(t, s, http.MethodPost, "/api/v1/orders", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return s
}

func doJSON(t *testing.T, s *Server, method, target string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestAddAndGetOrders(t *testing.T) {
	s := seedTestServer(t)

	resp := doJSON(t, s, http.MethodGet, "/api/v1/orders?ids=1,2,3,4", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Orders []orderPayload `json:"orders"`
	}
	decodeBody(t, resp, &body)

	require.Len(t, body.Orders, 4)
	require.Equal(t, int64(1), body.Orders[0].ID)
	require.Equal(t, "1000.00", body.Orders[0].Amount)
	require.Len(t, body.Orders[3].Items, 4)
	require.Equal(t, "404.00", body.Orders[3].Items[3].UnitPrice)
}

func TestGetOrdersEmptyIDList(t *testing.T) {
	s := seedTestServer(t)

	resp := doJSON(t, s, http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Orders []orderPayload `json:"orders"`
	}
	decodeBody(t, resp, &body)
	require.Empty(t, body.Orders)
}

func TestGetOrdersBadIDList(t *testing.T) {
	s := seedTestServer(t)

	for _, ids := range []string{"abc", "0", "-1", "1,,2"} {
		resp := doJSON(t, s, http.MethodGet, "/api/v1/orders?ids="+ids, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "ids=%q", ids)

		var body map[string]string
		decodeBody(t, resp, &body)
		require.Equal(t, domain.ErrorClassValidation, body["error_class"])
	}
}

func TestAddOrdersDuplicateConflict(t *testing.T) {
	s := seedTestServer(t)

	body := addOrdersRequest{Orders: []orderPayload{{
		ID:        1,
		ClientID:  123456,
		State:     "created",
		Amount:    "10.00",
		CreatedAt: time.Now().UTC(),
		Items:     []itemPayload{{SkuID: 1, Quantity: 1, UnitPrice: "10.00"}},
	}}}

	resp := doJSON(t, s, http.MethodPost, "/api/v1/orders", body)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	require.Equal(t, domain.ErrorClassPersistence, errBody["error_class"])
}

func TestAddOrdersValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name  string
		order orderPayload
	}{
		{"unknown state", orderPayload{ID: 1, ClientID: 2, State: "shipped", Amount: "1.00",
			Items: []itemPayload{{SkuID: 1, Quantity: 1, UnitPrice: "1.00"}}}},
		{"bad amount", orderPayload{ID: 1, ClientID: 2, State: "created", Amount: "1.234",
			Items: []itemPayload{{SkuID: 1, Quantity: 1, UnitPrice: "1.00"}}}},
		{"no items", orderPayload{ID: 1, ClientID: 2, State: "created", Amount: "1.00"}},
		{"zero quantity", orderPayload{ID: 1, ClientID: 2, State: "created", Amount: "1.00",
			Items: []itemPayload{{SkuID: 1, Quantity: 0, UnitPrice: "1.00"}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, s, http.MethodPost, "/api/v1/orders", addOrdersRequest{Orders: []orderPayload{tc.order}})
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestAddOrdersEmptyBatch(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, http.MethodPost, "/api/v1/orders", addOrdersRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClientOrdersPage(t *testing.T) {
	s := seedTestServer(t)

	resp := doJSON(t, s, http.MethodGet, "/api/v1/clients/123456/orders?page_size=4", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Rows []orderRowPayload `json:"order_rows"`
	}
	decodeBody(t, resp, &body)

	require.Len(t, body.Rows, 10)
	require.Equal(t, int64(4), body.Rows[0].OrderID)
	require.Equal(t, int64(1), body.Rows[9].OrderID)
	require.Equal(t, "4000.00", body.Rows[0].Amount)
}

func TestClientOrdersCursor(t *testing.T) {
	s := seedTestServer(t)

	resp := doJSON(t, s, http.MethodGet, "/api/v1/clients/123456/orders?page_size=4&start_from_order_id=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Rows []orderRowPayload `json:"order_rows"`
	}
	decodeBody(t, resp, &body)

	require.Len(t, body.Rows, 1)
	require.Equal(t, int64(1), body.Rows[0].OrderID)
}

func TestClientOrdersDefaultPageSizeIsEmpty(t *testing.T) {
	s := seedTestServer(t)

	resp := doJSON(t, s, http.MethodGet, "/api/v1/clients/123456/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Rows []orderRowPayload `json:"order_rows"`
	}
	decodeBody(t, resp, &body)
	require.Empty(t, body.Rows)
}

func TestClientOrdersBadParams(t *testing.T) {
	s := seedTestServer(t)

	for _, target := range []string{
		"/api/v1/clients/abc/orders",
		"/api/v1/clients/0/orders",
		"/api/v1/clients/123456/orders?page_size=-1",
		"/api/v1/clients/123456/orders?page_size=x",
		"/api/v1/clients/123456/orders?start_from_order_id=-5",
	} {
		resp := doJSON(t, s, http.MethodGet, target, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "target %s", target)
	}
}

func TestOrdersStreamNDJSON(t *testing.T) {
	s := seedTestServer(t)

	resp := doJSON(t, s, http.MethodGet, "/api/v1/orders/stream?ids=1,2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, contentTypeNDJSON, resp.Header.Get("Content-Type"))
	defer resp.Body.Close()

	var orders []orderPayload
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var order orderPayload
		require.NoError(t, json.Unmarshal(line, &order), "line %q", line)
		orders = append(orders, order)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, orders, 2)
	require.Equal(t, int64(1), orders[0].ID)
	require.Len(t, orders[1].Items, 2)
}

func TestClientOrdersStreamNDJSON(t *testing.T) {
	s := seedTestServer(t)

	resp := doJSON(t, s, http.MethodGet, "/api/v1/clients/123456/orders/stream?page_size=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, contentTypeNDJSON, resp.Header.Get("Content-Type"))
	defer resp.Body.Close()

	var rows []orderRowPayload
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var row orderRowPayload
		require.NoError(t, json.Unmarshal(line, &row))
		rows = append(rows, row)
	}
	require.NoError(t, scanner.Err())

	// pageSize=2: заказы 4 и 3 целиком, 4+3 строки.
	require.Len(t, rows, 7)
	require.Equal(t, int64(4), rows[0].OrderID)
	require.Equal(t, int64(3), rows[6].OrderID)
}

func TestClientOrdersStreamErrorLine(t *testing.T) {
	s := seedTestServer(t)

	// Ошибка из репозитория приходит последней строкой потока:
	// заголовки уже отданы, статус менять поздно.
	resp := doJSON(t, s, http.MethodGet, "/api/v1/clients/123456/orders/stream?page_size=-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var errLine streamErrorLine
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &errLine))
	require.Equal(t, domain.ErrorClassValidation, errLine.Class)
	require.NotEmpty(t, errLine.Error)
}

// interruptedRepo отдаёт подготовленные заказы и обрывает поток
// ошибкой хранилища.
type interruptedRepo struct {
	domain.OrderRepository
	orders []domain.Order
	err    error
}

func (r interruptedRepo) Get(context.Context, []int64) iter.Seq2[domain.Order, error] {
	return func(yield func(domain.Order, error) bool) {
		for _, order := range r.orders {
			if !yield(order, nil) {
				return
			}
		}
		yield(domain.Order{}, r.err)
	}
}

func TestOrdersStreamMidStreamError(t *testing.T) {
	orders := []domain.Order{
		{ID: 1, ClientID: 123456, State: domain.OrderStateCreated, Amount: 100,
			Items: []domain.Item{{SkuID: 1, Quantity: 1, UnitPrice: 100}}},
		{ID: 2, ClientID: 123456, State: domain.OrderStateCreated, Amount: 200,
			Items: []domain.Item{{SkuID: 2, Quantity: 2, UnitPrice: 100}}},
	}
	repo := interruptedRepo{
		orders: orders,
		err:    fmt.Errorf("%w: connection reset", domain.ErrStorageUnavailable),
	}
	s := NewServer(repo, nil)

	resp := doJSON(t, s, http.MethodGet, "/api/v1/orders/stream?ids=1,2,3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := bytes.TrimSpace(scanner.Bytes()); len(line) > 0 {
			lines = append(lines, append([]byte(nil), line...))
		}
	}
	require.NoError(t, scanner.Err())

	// Всё отданное до обрыва валидно, последняя строка описывает ошибку.
	require.Len(t, lines, 3)
	for i, raw := range lines[:2] {
		var order orderPayload
		require.NoError(t, json.Unmarshal(raw, &order))
		require.Equal(t, int64(i+1), order.ID)
	}

	var errLine streamErrorLine
	require.NoError(t, json.Unmarshal(lines[2], &errLine))
	require.Equal(t, domain.ErrorClassConnectivity, errLine.Class)
	require.NotEmpty(t, errLine.Error)
}

func TestRequestIDPropagation(t *testing.T) {
	s := seedTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?ids=1", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "req-42", resp.Header.Get(requestIDHeader))

	resp = doJSON(t, s, http.MethodGet, "/api/v1/orders?ids=1", nil)
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

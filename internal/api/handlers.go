package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/vladislavdragonenkov/order-history/internal/domain"
)

const contentTypeNDJSON = "application/x-ndjson"

type itemPayload struct {
	SkuID     int64  `json:"sku_id"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type orderPayload struct {
	ID        int64         `json:"id"`
	ClientID  int64         `json:"client_id"`
	State     string        `json:"state"`
	Amount    string        `json:"amount"`
	CreatedAt time.Time     `json:"created_at"`
	Items     []itemPayload `json:"items"`
}

type orderRowPayload struct {
	OrderID  int64     `json:"order_id"`
	ClientID int64     `json:"client_id"`
	State    string    `json:"state"`
	Amount   string    `json:"amount"`
	Date     time.Time `json:"date"`
	SkuID    int64     `json:"sku_id"`
	Quantity int32     `json:"quantity"`
	Price    string    `json:"price"`
}

type addOrdersRequest struct {
	Orders []orderPayload `json:"orders"`
}

// Последняя строка NDJSON-потока при ошибке посреди выдачи. Всё,
// что отдано до неё, валидно; последовательность неполна.
type streamErrorLine struct {
	Error string `json:"error"`
	Class string `json:"error_class"`
}

// getOrders возвращает заказы по набору идентификаторов одним ответом.
func (s *Server) getOrders(c *fiber.Ctx) error {
	ids, err := parseIDList(c.Query("ids"))
	if err != nil {
		return s.respondError(c, err)
	}

	orders := make([]orderPayload, 0, len(ids))
	for order, err := range s.repo.Get(c.Context(), ids) {
		if err != nil {
			return s.respondError(c, err)
		}
		orders = append(orders, toOrderPayload(order))
	}

	return c.JSON(fiber.Map{"orders": orders})
}

// getOrdersStream отдаёт заказы NDJSON-потоком по мере чтения из
// хранилища, не материализуя результат.
func (s *Server) getOrdersStream(c *fiber.Ctx) error {
	ids, err := parseIDList(c.Query("ids"))
	if err != nil {
		return s.respondError(c, err)
	}

	// Писатель потока выполняется после возврата handler, когда fiber.Ctx
	// уже вернулся в пул: всё нужное снимается с контекста заранее.
	reqCtx := c.Context()
	path := c.Path()
	requestID, _ := c.Locals("request_id").(string)
	c.Set(fiber.HeaderContentType, contentTypeNDJSON)
	reqCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		enc := json.NewEncoder(w)
		for order, err := range s.repo.Get(reqCtx, ids) {
			if err != nil {
				s.logStreamError(path, requestID, err)
				_ = enc.Encode(streamErrorLine{Error: err.Error(), Class: domain.ErrorClass(err)})
				return
			}
			if err := enc.Encode(toOrderPayload(order)); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))

	return nil
}

// getClientOrders возвращает страницу истории клиента одним ответом.
func (s *Server) getClientOrders(c *fiber.Ctx) error {
	clientID, pageSize, startFrom, err := parseClientPageParams(c)
	if err != nil {
		return s.respondError(c, err)
	}

	rows := make([]orderRowPayload, 0, max(pageSize, 0))
	for row, err := range s.repo.GetClientOrders(c.Context(), clientID, pageSize, startFrom) {
		if err != nil {
			return s.respondError(c, err)
		}
		rows = append(rows, toRowPayload(row))
	}

	return c.JSON(fiber.Map{"order_rows": rows})
}

// getClientOrdersStream отдаёт страницу истории NDJSON-потоком.
func (s *Server) getClientOrdersStream(c *fiber.Ctx) error {
	clientID, pageSize, startFrom, err := parseClientPageParams(c)
	if err != nil {
		return s.respondError(c, err)
	}

	reqCtx := c.Context()
	path := c.Path()
	requestID, _ := c.Locals("request_id").(string)
	c.Set(fiber.HeaderContentType, contentTypeNDJSON)
	reqCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		enc := json.NewEncoder(w)
		for row, err := range s.repo.GetClientOrders(reqCtx, clientID, pageSize, startFrom) {
			if err != nil {
				s.logStreamError(path, requestID, err)
				_ = enc.Encode(streamErrorLine{Error: err.Error(), Class: domain.ErrorClass(err)})
				return
			}
			if err := enc.Encode(toRowPayload(row)); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))

	return nil
}

// addOrders вставляет пакет агрегатов. Пакет либо записывается целиком,
// либо отклоняется.
func (s *Server) addOrders(c *fiber.Ctx) error {
	var req addOrdersRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondStatus(c, fiber.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
	}
	if len(req.Orders) == 0 {
		return s.respondStatus(c, fiber.StatusBadRequest, domain.ErrItemsRequired)
	}

	orders := make([]domain.Order, 0, len(req.Orders))
	for i, payload := range req.Orders {
		order, err := payloadToOrder(payload)
		if err != nil {
			return s.respondStatus(c, fiber.StatusBadRequest, fmt.Errorf("orders[%d]: %w", i, err))
		}
		orders = append(orders, order)
	}

	if err := s.repo.Add(c.Context(), orders); err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"added": len(orders)})
}

func (s *Server) respondError(c *fiber.Ctx, err error) error {
	return s.respondStatus(c, statusFromError(err), err)
}

func (s *Server) respondStatus(c *fiber.Ctx, status int, err error) error {
	if status >= fiber.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error":       err.Error(),
		"error_class": domain.ErrorClass(err),
	})
}

// logStreamError вызывается из писателя потока, когда fiber.Ctx уже
// недоступен; путь и идентификатор запроса приходят значениями.
func (s *Server) logStreamError(path, requestID string, err error) {
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"path":       path,
		"request_id": requestID,
	})
	if domain.IsCancellation(err) {
		entry.Debug("stream cancelled")
		return
	}
	entry.Warn("stream interrupted")
}

func statusFromError(err error) int {
	switch domain.ErrorClass(err) {
	case domain.ErrorClassValidation:
		return fiber.StatusBadRequest
	case domain.ErrorClassPersistence:
		return fiber.StatusConflict
	case domain.ErrorClassConnectivity:
		return fiber.StatusServiceUnavailable
	case domain.ErrorClassCancelled:
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// parseIDList разбирает список идентификаторов "1,2,3" из query-строки.
// Пустой список валиден и означает пустую выдачу.
func parseIDList(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: bad id %q", domain.ErrOrderIDRequired, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseClientPageParams разбирает параметры страницы. Курсор 0 (или
// отсутствие) — запрос самой свежей страницы: внешняя граница не
// применяется.
func parseClientPageParams(c *fiber.Ctx) (clientID int64, pageSize int32, startFrom int64, err error) {
	clientID, err = strconv.ParseInt(c.Params("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		return 0, 0, 0, domain.ErrClientIDRequired
	}

	rawSize := c.Query("page_size", "0")
	size, err := strconv.ParseInt(rawSize, 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: bad page_size %q", domain.ErrPageSizeNegative, rawSize)
	}

	rawStart := c.Query("start_from_order_id", "0")
	startFrom, err = strconv.ParseInt(rawStart, 10, 64)
	if err != nil || startFrom < 0 {
		return 0, 0, 0, fmt.Errorf("%w: bad start_from_order_id %q", domain.ErrOrderIDRequired, rawStart)
	}
	if startFrom == 0 {
		startFrom = domain.StartFromLatest
	}

	return clientID, int32(size), startFrom, nil
}

func toOrderPayload(order domain.Order) orderPayload {
	items := make([]itemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemPayload{
			SkuID:     item.SkuID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
		})
	}

	return orderPayload{
		ID:        order.ID,
		ClientID:  order.ClientID,
		State:     order.State.String(),
		Amount:    order.Amount.String(),
		CreatedAt: order.CreatedAt,
		Items:     items,
	}
}

func toRowPayload(row domain.OrderRow) orderRowPayload {
	return orderRowPayload{
		OrderID:  row.OrderID,
		ClientID: row.ClientID,
		State:    row.State.String(),
		Amount:   row.Amount.String(),
		Date:     row.Date,
		SkuID:    row.SkuID,
		Quantity: row.Quantity,
		Price:    row.Price.String(),
	}
}

func payloadToOrder(payload orderPayload) (domain.Order, error) {
	state, err := domain.ParseOrderState(payload.State)
	if err != nil {
		return domain.Order{}, fmt.Errorf("state %q: %w", payload.State, err)
	}
	amount, err := domain.ParseMoney(payload.Amount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("amount: %w", err)
	}

	items := make([]domain.Item, 0, len(payload.Items))
	for i, item := range payload.Items {
		price, err := domain.ParseMoney(item.UnitPrice)
		if err != nil {
			return domain.Order{}, fmt.Errorf("items[%d].unit_price: %w", i, err)
		}
		items = append(items, domain.Item{
			SkuID:     item.SkuID,
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}

	return domain.Order{
		ID:        payload.ID,
		ClientID:  payload.ClientID,
		State:     state,
		Amount:    amount,
		CreatedAt: domain.NormalizeTime(payload.CreatedAt),
		Items:     items,
	}, nil
}

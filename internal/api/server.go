package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-history/internal/domain"
)

const requestIDHeader = "X-Request-Id"

// Server — HTTP-фасад над репозиторием истории заказов. Repository
// остаётся единственным владельцем доступа к данным; сервер лишь
// переводит запросы в вызовы и доменные объекты в ответы.
type Server struct {
	app    *fiber.App
	repo   domain.OrderRepository
	logger *log.Entry
}

// NewServer собирает приложение Fiber и монтирует маршруты.
func NewServer(repo domain.OrderRepository, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.WithField("component", "api")
	}

	app := fiber.New(fiber.Config{
		AppName:               "order-history",
		DisableStartupMessage: true,
	})

	s := &Server{
		app:    app,
		repo:   repo,
		logger: logger,
	}

	app.Use(s.requestID)
	app.Use(s.accessLog)

	v1 := app.Group("/api/v1")
	v1.Get("/orders", s.getOrders)
	v1.Get("/orders/stream", s.getOrdersStream)
	v1.Post("/orders", s.addOrders)
	v1.Get("/clients/:client_id/orders", s.getClientOrders)
	v1.Get("/clients/:client_id/orders/stream", s.getClientOrdersStream)

	return s
}

// App возвращает приложение Fiber; используется тестами через app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen блокируется на обслуживании входящих соединений.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

// requestID прокидывает идентификатор запроса для трассировки в логах.
func (s *Server) requestID(c *fiber.Ctx) error {
	rid := c.Get(requestIDHeader)
	if rid == "" {
		rid = uuid.NewString()
	}
	c.Locals("request_id", rid)
	c.Set(requestIDHeader, rid)
	return c.Next()
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()

	s.logger.WithFields(log.Fields{
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     c.Response().StatusCode(),
		"duration":   time.Since(started).String(),
		"request_id": c.Locals("request_id"),
	}).Debug("request handled")

	return err
}

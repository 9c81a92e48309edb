package devserver

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	sessionCookie   = "tredit_session"
	requestIDHeader = "X-Request-ID"
)

// requestLogger logs one structured line per request. The client's request
// id is reused when it sends one.
func requestLogger(log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Locals("request_id", reqID)
		c.Set(requestIDHeader, reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		entry := log.WithFields(logrus.Fields{
			"request_id": reqID,
			"method":     c.Method(),
			"uri":        c.OriginalURL(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case err != nil:
			entry.WithError(err).Error("request failed")
		case status >= 500:
			entry.Error("request completed with server error")
		case status >= 400:
			entry.Warn("request completed with client error")
		default:
			entry.Info("request completed")
		}
		return err
	}
}

// sessionID binds the request to a session, issuing a cookie when the client
// has none.
func (s *Server) sessionID(c *fiber.Ctx) error {
	id := c.Cookies(sessionCookie)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	c.Locals(sessionCookie, id)
	return c.Next()
}

func (s *Server) session(c *fiber.Ctx) *session {
	id, _ := c.Locals(sessionCookie).(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	return sess
}

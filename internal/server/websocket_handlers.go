package server

import (
	"context"
	"errors"
	"time"

	"bsuchat/internal/gateway"
	"bsuchat/internal/models"
	"bsuchat/internal/notifications"
	"bsuchat/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const wsTicketTTL = 60 * time.Second

func wsTicketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

// IssueWSTicket returns a short-lived, single-use ticket for opening /ws
// without putting the bearer token in the URL.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(errors.New("ticket store unavailable")))
	}
	userID, _ := c.Locals("userID").(string)

	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), wsTicketKey(ticket), userID, wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// WebSocketUpgrade rejects plain HTTP requests and resolves the user from a
// ticket or token query parameter. Connections without either may still
// send an authenticate event after the upgrade.
func (s *Server) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	if ticket := c.Query("ticket"); ticket != "" {
		if s.redis == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
		}
		userID, err := s.redis.GetDel(c.UserContext(), wsTicketKey(ticket)).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				observability.GlobalLogger.WarnContext(c.UserContext(), "ws ticket lookup failed", "error", err)
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
		}
		c.Locals("userID", userID)
		return c.Next()
	}

	if token := c.Query("token"); token != "" {
		claims, err := s.tokens.Parse(token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}
		c.Locals("userID", claims.UserID)
	}
	return c.Next()
}

// WebSocketHandler runs one chat session per connection.
func (s *Server) WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := observability.WithCorrelationID(context.Background(), uuid.NewString())
		client := notifications.NewClient(ctx, s.hub, conn)

		if err := s.hub.Add(client); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "websocket rejected", "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"`+err.Error()+`"}}`))
			_ = conn.Close()
			return
		}

		session := gateway.NewSession(client, gateway.Deps{
			Router:   s.router,
			Tokens:   s.tokens,
			Presence: s.hub,
			Limiter:  s.sendLimiter,
		})
		defer session.Close()

		if userID, ok := conn.Locals("userID").(string); ok && userID != "" {
			if err := session.AuthenticateUser(ctx, userID); err != nil {
				observability.GlobalLogger.WarnContext(ctx, "websocket bind failed", "user_id", userID, "error", err)
				s.hub.UnregisterClient(client)
				_ = conn.Close()
				return
			}
		}

		client.IncomingHandler = func(_ *notifications.Client, message []byte) {
			session.Handle(ctx, message)
		}

		go client.WritePump()
		client.ReadPump()
	})
}

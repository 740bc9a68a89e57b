package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"bookswap/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler streams the caller's notifications. The first frame is an
// unread-count snapshot; every later frame is a models.NotificationEvent.
// @Summary Notification stream
// @Tags notifications
// @Security BearerAuth
// @Param token query string false "Access token, for clients that cannot set headers"
// @Router /ws [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok || s.hub == nil {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("notification socket rejected",
				slog.Uint64("user_id", uint64(uid)), slog.Any("error", err))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		if n, err := s.notificationService.UnreadCount(context.Background(), uid); err == nil {
			if payload, err := json.Marshal(map[string]any{
				"type":    "unread_count",
				"payload": map[string]int64{"count": n},
			}); err == nil {
				client.TrySend(payload)
			}
		}

		go client.WritePump()
		client.ReadPump()
	})
}

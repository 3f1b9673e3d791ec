package controller

import (
	"context"
	"errors"

	"collabforcause/relay"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type RelayController struct {
	Hub    *relay.Hub
	Logger *logrus.Logger
}

func NewRelayController(hub *relay.Hub, logger *logrus.Logger) *RelayController {
	return &RelayController{Hub: hub, Logger: logger}
}

// Upgrade rejects plain HTTP requests to the relay endpoint.
func (rc *RelayController) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve runs one socket until it disconnects.
func (rc *RelayController) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := relay.NewClient(conn)
		rc.Hub.Register(client)
		log := rc.Logger.WithFields(logrus.Fields{"operation": "relay.Serve", "client_id": client.ID})
		log.Debug("relay client connected")

		defer func() {
			rc.Hub.Remove(client)
			conn.Close()
			log.Debug("relay client disconnected")
		}()

		ctx := context.Background()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Warn("relay read failed")
				}
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			if err := rc.Hub.Handle(ctx, client, msg); err != nil {
				if errors.Is(err, relay.ErrPublish) {
					log.WithError(err).Warn("relay message not broadcast")
					continue
				}
				log.WithError(err).Debug("dropping malformed relay frame")
			}
		}
	})
}

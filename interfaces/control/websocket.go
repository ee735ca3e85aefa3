package control

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/foldershare/sharer/pkg/logger"
)

// WebSocketHandler streams the Redis-relayed event lines verbatim, so a
// browser client parses the same "TAG: payload" grammar a CLI consumer
// would (spec §4.4/§6). Every line published on the relay channel is
// forwarded, whichever run produced it; the route's :id does not filter
// the stream. It requires Redis — a nil client
// closes the connection immediately, since there is no relay to read
// event lines from without it.
type WebSocketHandler struct {
	redis   *goredis.Client
	channel string
}

func NewWebSocketHandler(redisClient *goredis.Client, channel string) *WebSocketHandler {
	return &WebSocketHandler{redis: redisClient, channel: channel}
}

// Upgrade gates the route on the websocket handshake, the standard fiber
// pattern paired with websocket.New.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream relays every message published to h.channel to the connected
// client until either side disconnects.
func (h *WebSocketHandler) Stream(c *websocket.Conn) {
	defer c.Close()

	if h.redis == nil {
		logger.Warn(logger.CategoryControl, "ws_unavailable", "event stream requested with no redis relay configured", nil)
		return
	}

	sub := h.redis.Subscribe(context.Background(), h.channel)
	defer sub.Close()

	ch := sub.Channel()
	for msg := range ch {
		if err := c.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
			return
		}
	}
}

// Package control implements the optional control-plane HTTP surface from
// SPEC_FULL's domain stack: a JWT-protected fiber app that launches engine
// runs and streams their event lines, the "thin web front-end" collaborator
// spec §1/§6 calls out without specifying. The CLI entrypoint remains the
// primary interface; this is started only when CONTROL_ADDR is set.
package control

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/foldershare/sharer/pkg/config"
)

// NewServer builds the fiber app: POST /runs, GET /runs/:id, GET
// /ws/runs/:id, all behind Protected() except a liveness probe.
func NewServer(cfg config.JWTConfig, runs *RunManager, redisClient *goredis.Client, redisChannel string) *fiber.App {
	app := fiber.New(fiber.Config{AppName: "folder-share-engine-control"})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	h := NewHandlers(runs)
	ws := NewWebSocketHandler(redisClient, redisChannel)

	api := app.Group("/", Protected(cfg.Secret))
	api.Post("/runs", h.StartRun)
	api.Get("/runs/:id", h.GetRun)

	api.Use("/ws/runs/:id", ws.Upgrade)
	api.Get("/ws/runs/:id", websocket.New(func(c *websocket.Conn) {
		ws.Stream(c)
	}))

	return app
}

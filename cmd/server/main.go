package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/PeterKeDer/connect-5-server/internal/config"
	"github.com/PeterKeDer/connect-5-server/internal/controller"
	"github.com/PeterKeDer/connect-5-server/internal/middleware"
	"github.com/PeterKeDer/connect-5-server/internal/service"
	"github.com/gammazero/workerpool"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/labstack/gommon/log"
)

func main() {
	c := config.Get()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: true,
	}))

	// Initialize services
	pool := workerpool.New(c.MaxWorkers)
	roomManager := service.NewRoomManager()
	sessionRegistry := service.NewSessionRegistry(c.PendingTimeout, c.DisconnectTimeout)
	roomService := service.NewRoomService(roomManager, sessionRegistry, pool)

	// Initialize controllers
	roomController := controller.NewRoomController(roomService)
	wsController := controller.NewWebSocketController(roomService)

	// Set up WebSocket routes
	app.Get("/ws/room/:roomId", middleware.WebSocketUpgrade(), websocket.New(func(c *websocket.Conn) {
		wsController.HandleConnection(c)
	}, websocket.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}))

	// Set up REST routes
	api := app.Group("/api")

	roomRoutes := api.Group("/room")
	roomRoutes.Post("/create", roomController.CreateRoom)
	roomRoutes.Post("/join/:roomId", roomController.JoinRoom)
	roomRoutes.Get("/:roomId", roomController.GetRoom)
	api.Get("/rooms", roomController.ListRooms)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", c.HttpPort)); err != nil {
			log.Fatal(err)
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	quit := <-signals
	log.Infof("signal %s received, stopping server...", quit)

	if err := app.Shutdown(); err != nil {
		log.Error(err)
	}
	pool.StopWait()
}

package stream

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:courseID", websocket.New(func(c *websocket.Conn) {
		courseID, err := strconv.Atoi(c.Params("courseID"))
		if err != nil {
			_ = c.Close()
			return
		}
		sub := hub.Subscribe(CourseTopic(courseID))
		defer hub.Unsubscribe(sub)

		done := make(chan struct{})
		go func() {
			for msg := range sub.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		<-done
	}))
}

package sync

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler serves the event feed over websocket at /ws.
func WSHandler(hub *Hub, logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		if err := hub.AddWS(ws); err != nil {
			logger.Warn("[ws] client dropped", "addr", c.ClientIP(), "err", err)
			return
		}
		logger.Info("[ws] client connected", "addr", c.ClientIP())

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		logger.Info("[ws] client disconnected", "addr", c.ClientIP())
	}
}

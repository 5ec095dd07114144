package sync

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"watchlog/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler subscribes a websocket client to the live feed.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		_ = ws.WriteMessage(websocket.TextMessage, hub.welcome("websocket"))
		hub.AddWS(ws)
		logging.Debug().Str("remote", c.ClientIP()).Msg("ws client connected")

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		logging.Debug().Str("remote", c.ClientIP()).Msg("ws client disconnected")
	}
}

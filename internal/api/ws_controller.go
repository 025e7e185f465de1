package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Лента движений только на чтение, origin не проверяем
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeLedgerWS подписывает клиента на ленту движений по журналу
// GET /ws/ledger
func ServeLedgerWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("⚠️ Ошибка обновления WebSocket соединения: %v", err)
			return
		}

		hub.AddClient(conn)
		log.Printf("📱 Клиент ленты остатков подключен. Всего подключений: %d", hub.GetClientsCount())

		defer func() {
			hub.RemoveClient(conn)
			log.Printf("📱 Клиент ленты остатков отключен. Осталось подключений: %d", hub.GetClientsCount())
		}()

		// Читаем до закрытия соединения (ping/pong)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("⚠️ WebSocket ошибка: %v", err)
				}
				break
			}
		}
	}
}

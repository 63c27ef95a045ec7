package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 將訊息寫入到遠端對等點的最長時間
	writeWait = 10 * time.Second

	// 允許從遠端對等點讀取下一個 pong 訊息的最長時間
	pongWait = 60 * time.Second

	// 發送 ping 訊息給遠端對等點的週期
	pingPeriod = (pongWait * 9) / 10

	// 事件通道是單向的，客戶端只該送 control frame
	maxMessageSize = 512
)

// upgrader 用於將 HTTP 連線升級為 WebSocket 連線
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client 代表一個訂閱單一聊天室事件的 WebSocket 連線
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Event
	userID string
	roomID string
}

// Subscribe 把 HTTP 連線升級為事件訂閱
// 呼叫端（路由層）必須先完成身分與成員資格檢查
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, userID, roomID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan Event, 64),
		userID: userID,
		roomID: roomID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
	return nil
}

// 事件通道不接受客戶端輸入，readPump 只負責 pong 與關閉偵測
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("realtime: read error for client %s: %v", c.userID, err)
			}
			return
		}
		// 任何客戶端送來的資料都忽略：變更只能走 REST
	}
}

// 接收 Hub 廣播來的事件並送給客戶端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				log.Printf("realtime: error marshalling event: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("realtime: error writing event: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package realtime

import (
	"context"
	"log"
)

// Hub 維護所有活躍的 WebSocket 訂閱者，並把事件廣播到所屬聊天室
// 對服務層而言它是寫入端，客戶端只能收、不能透過 socket 改狀態
type Hub struct {
	clients       map[*Client]bool
	clientsByRoom map[string]map[*Client]bool
	broadcast     chan Event
	register      chan *Client
	unregister    chan *Client
}

// NewHub 創建並返回一個新的 Hub 實例
func NewHub() *Hub {
	return &Hub{
		broadcast:     make(chan Event, 64),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		clientsByRoom: make(map[string]map[*Client]bool),
	}
}

// Publish 實作 Notifier：把事件丟進廣播通道
// 通道滿了就丟棄事件，絕不讓觸發它的變更等待
func (h *Hub) Publish(_ context.Context, event Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("realtime: broadcast channel full, dropping %s event for room %s", event.Type, event.RoomID)
	}
}

// Run 啟動 Hub 的運行迴圈
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			if _, ok := h.clientsByRoom[client.roomID]; !ok {
				h.clientsByRoom[client.roomID] = make(map[*Client]bool)
			}
			h.clientsByRoom[client.roomID][client] = true
			log.Printf("realtime: client %s subscribed to room %s (%d in room)", client.userID, client.roomID, len(h.clientsByRoom[client.roomID]))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.dropClient(client)
				log.Printf("realtime: client %s unsubscribed from room %s", client.userID, client.roomID)
			}
		case event := <-h.broadcast:
			clientsInRoom, ok := h.clientsByRoom[event.RoomID]
			if !ok {
				continue // 沒有訂閱者，事件直接丟棄
			}
			for client := range clientsInRoom {
				select {
				case client.send <- event:
				default:
					// 客戶端讀不過來就斷開它，廣播不能被單一慢連線拖住
					h.dropClient(client)
					log.Printf("realtime: client %s send buffer full, dropped from room %s", client.userID, client.roomID)
				}
			}
		}
	}
}

func (h *Hub) dropClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if room, ok := h.clientsByRoom[client.roomID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.clientsByRoom, client.roomID)
		}
	}
	close(client.send)
}

package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// channelPrefix 是跨實例事件頻道的前綴，後接聊天室 ID
const channelPrefix = "room.events."

// RedisPublisher 把事件發佈到 Redis Pub/Sub，供其他實例的 Hub 轉發
// 本引擎只寫不讀；沒有訂閱者時 PUBLISH 是 no-op，符合最多一次語義
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher 建立 Redis 事件發佈器
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish 實作 Notifier，發佈失敗只記 log
func (p *RedisPublisher) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: error marshalling event for redis: %v", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.client.Publish(pubCtx, channelPrefix+event.RoomID, payload).Err(); err != nil {
		log.Printf("realtime: error publishing %s event to redis: %v", event.Type, err)
	}
}

// Multi 把同一事件同時送往多個 Notifier（例如本地 Hub 加 Redis）
type Multi []Notifier

// Publish 實作 Notifier
func (m Multi) Publish(ctx context.Context, event Event) {
	for _, n := range m {
		n.Publish(ctx, event)
	}
}

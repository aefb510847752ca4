package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"fintrack/internal/database"
	"fintrack/pkg/cache"
	"fintrack/pkg/config"
	"fintrack/pkg/logger"

	"github.com/gorilla/websocket"
)

// RecordEvent 记录变更事件，数据库提交后用于通知客户端
// 纯通知用途，不参与任何写协调
type RecordEvent struct {
	TenantID  uint   `json:"tenant_id"`
	Module    string `json:"module"`
	EntityID  uint   `json:"entity_id"`
	RecordID  uint   `json:"record_id"`
	Action    string `json:"action"`
	Version   int    `json:"version"`
	ActorID   uint   `json:"actor_id"`
	Actor     string `json:"actor"`
	Timestamp int64  `json:"timestamp"`
}

// EventHub 事件枢纽：经Redis发布/订阅扇出到各WebSocket客户端
type EventHub struct {
	cache    *cache.RedisCache
	channel  string
	clients  map[*hubClient]bool
	lock     sync.RWMutex
	stopOnce sync.Once
	stop     chan struct{}
}

type hubClient struct {
	tenantID uint
	conn     *websocket.Conn
	send     chan []byte
}

var (
	globalHub     *EventHub
	globalHubOnce sync.Once
)

// GetEventHub 获取全局事件枢纽
func GetEventHub() *EventHub {
	globalHubOnce.Do(func() {
		cfg := config.GetConfig()
		globalHub = &EventHub{
			cache:   database.GetRedisCache(),
			channel: cfg.Redis.EventChan,
			clients: make(map[*hubClient]bool),
			stop:    make(chan struct{}),
		}
	})
	return globalHub
}

// Publish 发布记录事件，失败只记日志
func (h *EventHub) Publish(event RecordEvent) {
	event.Timestamp = time.Now().Unix()
	if err := h.cache.Publish(context.Background(), h.channel, event); err != nil {
		logger.GetLogger().Warnf("发布记录事件失败: %v", err)
	}
}

// Start 启动订阅循环，将事件转发给同租户的客户端
func (h *EventHub) Start() {
	pubsub := h.cache.Subscribe(context.Background(), h.channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-h.stop:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event RecordEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logger.GetLogger().Warnf("解析记录事件失败: %v", err)
					continue
				}
				h.broadcast(&event, []byte(msg.Payload))
			}
		}
	}()
}

// Stop 停止订阅循环并断开所有客户端
func (h *EventHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})

	h.lock.Lock()
	defer h.lock.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*hubClient]bool)
}

// broadcast 按租户过滤后投递，发送缓冲满则丢弃该客户端
func (h *EventHub) broadcast(event *RecordEvent, payload []byte) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	for client := range h.clients {
		if client.tenantID != event.TenantID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			logger.GetLogger().Warn("客户端事件缓冲已满，断开连接")
			go h.Unregister(client)
		}
	}
}

// Register 注册一个WebSocket客户端并启动其写循环
func (h *EventHub) Register(tenantID uint, conn *websocket.Conn) *hubClient {
	client := &hubClient{
		tenantID: tenantID,
		conn:     conn,
		send:     make(chan []byte, 64),
	}

	h.lock.Lock()
	h.clients[client] = true
	h.lock.Unlock()

	go func() {
		for payload := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.Unregister(client)
				return
			}
		}
	}()

	return client
}

// Unregister 注销客户端
func (h *EventHub) Unregister(client *hubClient) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		client.conn.Close()
	}
}

// ClientCount 当前连接数
func (h *EventHub) ClientCount() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

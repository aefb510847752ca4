package handlers

import (
	"net/http"
	"strings"
	"time"

	"fintrack/internal/services"
	"fintrack/pkg/config"
	"fintrack/pkg/jwt"
	"fintrack/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler 记录变更通知的WebSocket处理器
type WebSocketHandler struct {
	upgrader   websocket.Upgrader
	hub        *services.EventHub
	jwtManager *jwt.JWTManager
	log        *logrus.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *services.EventHub) *WebSocketHandler {
	cfg := config.GetConfig()
	allowedOrigins := cfg.CORS.AllowOrigins

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")

				for _, allowed := range allowedOrigins {
					if allowed == "*" {
						return true
					}
				}

				// Origin为空视为同源请求
				if origin == "" {
					return true
				}

				for _, allowed := range allowedOrigins {
					if matchOrigin(origin, allowed) {
						return true
					}
				}

				logger.GetLogger().Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
				return false
			},
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 4,
		},
		hub:        hub,
		jwtManager: jwt.GetJWTManager(),
		log:        logger.GetLogger(),
	}
}

// Events 订阅当前租户的记录变更事件
func (h *WebSocketHandler) Events(c *gin.Context) {
	// WebSocket不支持自定义header，token从查询参数取
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少认证令牌"})
		return
	}

	claims, err := h.jwtManager.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的令牌"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("WebSocket升级失败")
		return
	}

	h.log.WithFields(logrus.Fields{
		"user_id":   claims.UserID,
		"tenant_id": claims.TenantID,
	}).Info("WebSocket事件连接已建立")

	client := h.hub.Register(claims.TenantID, conn)
	defer h.hub.Unregister(client)

	// 读循环只处理客户端的ping/pong与关闭
	const pongWait = 300 * time.Second
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Warn("WebSocket异常关闭")
			}
			return
		}
	}
}

// matchOrigin 检查origin是否匹配allowed模式
// 支持精确匹配和通配符匹配（如 *.example.com）
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}

	if strings.HasPrefix(allowed, "*.") {
		domain := allowed[2:]

		originHost := origin
		if idx := strings.Index(origin, "://"); idx != -1 {
			originHost = origin[idx+3:]
		}
		if idx := strings.Index(originHost, ":"); idx != -1 {
			originHost = originHost[:idx]
		}

		if originHost == domain {
			return true
		}
		if strings.HasSuffix(originHost, "."+domain) {
			return true
		}
	}

	return false
}

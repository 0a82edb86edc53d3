package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	cfgpkg "github.com/calmwave/eeg-server/internal/config"
	"github.com/calmwave/eeg-server/internal/coremodel"
)

// DataSource HTTP 层对会话的只读/控制视图
type DataSource interface {
	Snapshot() (coremodel.Snapshot, bool, bool)
	AddMotion(x, y, z float64) bool
}

// snapshotResponse 快照查询响应体
type snapshotResponse struct {
	coremodel.Snapshot
	Active     bool `json:"active"`
	Simulating bool `json:"simulating"`
}

// motionRequest 运动采样上报请求体
type motionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Server HTTP 服务封装
type Server struct {
	srv          *http.Server
	logger       *zap.Logger
	source       DataSource
	pollInterval time.Duration
	upgrader     websocket.Upgrader
	limiter      *rate.Limiter // websocket 升级限速
	onStream     func(delta int)
}

// New 创建并配置 Gin + HTTP Server，注册健康检查、指标与数据路由
func New(cfg cfgpkg.HTTPConfig, source DataSource, logger *zap.Logger,
	metricsPath string, metricsHandler http.Handler, readyFn func() bool) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	streamRate := cfg.StreamRate
	if streamRate <= 0 {
		streamRate = 5.0
	}
	streamBurst := cfg.StreamBurst
	if streamBurst <= 0 {
		streamBurst = 10
	}

	s := &Server{
		logger:       logger,
		source:       source,
		pollInterval: pollInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		limiter: rate.NewLimiter(rate.Limit(streamRate), streamBurst),
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if readyFn == nil || readyFn() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	api := r.Group("/api/v1")
	api.GET("/snapshot", s.handleSnapshot)
	api.GET("/stream", s.handleStream)
	api.POST("/motion", s.handleMotion)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// SetStreamGauge 注册推送客户端计数回调（+1 连接 / -1 断开）
func (s *Server) SetStreamGauge(fn func(delta int)) {
	s.onStream = fn
}

// handleSnapshot 返回最近一次完整发布的快照
func (s *Server) handleSnapshot(c *gin.Context) {
	snap, active, simulating := s.source.Snapshot()
	c.JSON(http.StatusOK, snapshotResponse{
		Snapshot:   snap,
		Active:     active,
		Simulating: simulating,
	})
}

// handleStream 升级为 websocket，按 pollInterval 周期推送快照
func (s *Server) handleStream(c *gin.Context) {
	if !s.limiter.Allow() {
		c.String(http.StatusTooManyRequests, "stream rate limited")
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if s.onStream != nil {
		s.onStream(1)
		defer s.onStream(-1)
	}

	// 丢弃入站消息，同时感知客户端断开
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			snap, active, simulating := s.source.Snapshot()
			msg := snapshotResponse{Snapshot: snap, Active: active, Simulating: simulating}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// handleMotion 向仿真引擎馈入运动采样；仿真未运行时返回 409
func (s *Server) handleMotion(c *gin.Context) {
	var req motionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid motion payload"})
		return
	}
	if !s.source.AddMotion(req.X, req.Y, req.Z) {
		c.JSON(http.StatusConflict, gin.H{"error": "simulation not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

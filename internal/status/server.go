// Package status 提供 WAN 监控的 HTTP 状态接口
package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/holygeek00/lite-wanmon/internal/monitor"
	"github.com/holygeek00/lite-wanmon/pkg/config"
	"github.com/holygeek00/lite-wanmon/pkg/logging"
	"github.com/holygeek00/lite-wanmon/pkg/models"
)

// unhealthyAfterFailedCycles 连续多少个周期采样失败后视为不健康
const unhealthyAfterFailedCycles = 3

// Server 状态 HTTP 服务器
type Server struct {
	cfg     config.StatusConfig
	monitor *monitor.Monitor
	metrics *monitor.Metrics
	logger  logging.Logger
	router  *gin.Engine
	server  *http.Server
	started time.Time
	version string
}

// NewServer 创建状态服务器，metrics 为 nil 时不注册 /metrics
func NewServer(cfg config.StatusConfig, mon *monitor.Monitor, metrics *monitor.Metrics, version string, logger logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Server{
		cfg:     cfg,
		monitor: mon,
		metrics: metrics,
		logger:  logger,
		router:  gin.New(),
		started: time.Now(),
		version: version,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/wans", s.handleListWans)
		v1.GET("/wans/:id", s.handleGetWan)
	}

	s.router.GET("/health", s.handleHealth)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}
}

// requestLogger 以 DEBUG 级别记录请求
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			logging.F("method", c.Request.Method),
			logging.F("path", c.Request.URL.Path),
			logging.F("status", c.Writer.Status()),
			logging.F("latency", time.Since(start).String()),
		)
	}
}

// handleListWans 返回全部 WAN 的跟踪状态
func (s *Server) handleListWans(c *gin.Context) {
	c.JSON(http.StatusOK, models.WansResponse{
		Strategy: s.monitor.Status().Strategy,
		Wans:     s.monitor.Tracker().Snapshots(),
	})
}

// wanDetail 单个 WAN 的详细状态
type wanDetail struct {
	models.WanSnapshot
	Interface string                     `json:"interface,omitempty"`
	Counters  *monitor.InterfaceCounters `json:"interface_counters,omitempty"`
}

// handleGetWan 返回单个 WAN 的状态和网卡计数器
func (s *Server) handleGetWan(c *gin.Context) {
	id := c.Param("id")

	snap, err := s.monitor.Tracker().Snapshot(id)
	if err != nil {
		if errors.Is(err, models.ErrUnknownWAN) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Detail: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Detail: err.Error()})
		return
	}

	detail := wanDetail{WanSnapshot: snap}
	if iface, ok := s.monitor.WanInterface(id); ok {
		detail.Interface = iface
		counters, cerr := s.monitor.InterfaceCounters(id)
		if cerr != nil {
			s.logger.Warn("Failed to read interface counters", logging.WAN(id), logging.Err(cerr))
		}
		detail.Counters = counters
	}

	c.JSON(http.StatusOK, detail)
}

// handleHealth 处理健康检查
func (s *Server) handleHealth(c *gin.Context) {
	resp := s.Health()
	if resp.IsHealthy() {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusServiceUnavailable, resp)
}

// Health 汇总监控循环和采样源的健康状态
func (s *Server) Health() *models.DetailedHealthResponse {
	resp := models.NewDetailedHealthResponse()
	resp.Version = s.version
	resp.Uptime = time.Since(s.started).Round(time.Second).String()

	st := s.monitor.Status()

	loop := models.NewComponentHealth(models.HealthStatusHealthy)
	loop.Details["running"] = st.Running
	loop.Details["phase"] = string(st.Phase)
	loop.Details["strategy"] = st.Strategy
	loop.Details["cycles"] = st.Cycles
	loop.Details["remediations"] = st.Remediations
	if st.LastCycle != nil {
		loop.Details["last_cycle"] = st.LastCycle.Format(time.RFC3339)
	} else {
		loop.Details["last_cycle"] = nil
	}
	if !st.Running {
		loop.Status = models.HealthStatusUnhealthy
		loop.Details["error"] = "monitor loop not running"
	}
	resp.AddComponent("monitor", loop)

	source := models.NewComponentHealth(models.HealthStatusHealthy)
	source.Details["failed_cycles"] = st.FailedCycles
	source.Details["consecutive_failed_cycles"] = st.ConsecutiveFailed
	if st.LastError != "" {
		source.Details["last_error"] = st.LastError
	}
	switch {
	case st.ConsecutiveFailed >= unhealthyAfterFailedCycles:
		source.Status = models.HealthStatusUnhealthy
	case st.ConsecutiveFailed > 0:
		source.Status = models.HealthStatusDegraded
	}
	resp.AddComponent("reading_source", source)

	return resp
}

// Handler 返回 HTTP 处理器（用于测试）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动状态服务器
func (s *Server) Start() error {
	go func() {
		s.logger.Info("Status server listening", logging.F("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server error", logging.Err(err))
		}
	}()
	return nil
}

// Stop 停止状态服务器
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"opinion-radar/internal/cleaner"
	"opinion-radar/internal/export"
	"opinion-radar/internal/model"
	"opinion-radar/internal/storage"
	"opinion-radar/internal/watch"
)

const defaultUserID = "demo_user"

// CrawlService 抽象手动抓取入口。
type CrawlService interface {
	Crawl(ctx context.Context, platform, keyword string, maxCount int, cookie string) ([]model.Record, error)
}

// Runner 抽象订阅的单次执行。
type Runner interface {
	Run(ctx context.Context, w model.Watch) model.RunSummary
}

// HistoryStore 抽象运行历史查询，可为 nil。
type HistoryStore interface {
	ListHistory(ctx context.Context, query storage.HistoryQuery) ([]model.RunHistory, error)
}

// Server 暴露订阅管理与手动抓取的 HTTP 接口。
type Server struct {
	registry *watch.Registry
	runner   Runner
	crawls   CrawlService
	buffer   *storage.CrawlBuffer
	history  HistoryStore
	log      *logrus.Entry
}

// NewServer 创建 API 服务。
func NewServer(registry *watch.Registry, runner Runner, crawls CrawlService, buffer *storage.CrawlBuffer, history HistoryStore) *Server {
	return &Server{
		registry: registry,
		runner:   runner,
		crawls:   crawls,
		buffer:   buffer,
		history:  history,
		log:      logrus.WithField("component", "api"),
	}
}

// Handler 构造 gin 路由。
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		ok(c, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/watch", s.createWatch)
		api.GET("/watch", s.listWatches)
		api.POST("/watch/:id/enable", s.enableWatch)
		api.POST("/watch/:id/test", s.testWatch)
		api.DELETE("/watch/:id", s.deleteWatch)

		api.POST("/crawl", s.crawl)
		api.GET("/crawl/data", s.crawlData)
		api.POST("/crawl/clear", s.crawlClear)

		api.GET("/history", s.listHistory)
		api.GET("/export", s.exportXLSX)
	}

	return r
}

func (s *Server) createWatch(c *gin.Context) {
	var req watch.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload")
		return
	}
	w, err := s.registry.Create(req, userID(c))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	ok(c, w)
}

func (s *Server) listWatches(c *gin.Context) {
	ok(c, s.registry.List(userID(c)))
}

type enableRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) enableWatch(c *gin.Context) {
	var req enableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if !s.registry.SetEnabled(c.Param("id"), req.Enabled) {
		fail(c, http.StatusNotFound, "watch not found")
		return
	}
	ok(c, gin.H{"enabled": req.Enabled})
}

// testWatch 立即执行一次订阅，但不推进 last_run，不影响排期。
func (s *Server) testWatch(c *gin.Context) {
	w, found := s.registry.Get(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "watch not found")
		return
	}
	summary := s.runner.Run(c.Request.Context(), w)
	ok(c, summary)
}

func (s *Server) deleteWatch(c *gin.Context) {
	if !s.registry.Delete(c.Param("id")) {
		fail(c, http.StatusNotFound, "watch not found")
		return
	}
	ok(c, gin.H{"deleted": true})
}

type crawlRequest struct {
	Keyword  string `json:"keyword"`
	Platform string `json:"platform"`
	MaxCount int    `json:"max_count"`
	Cookie   string `json:"cookie"`
}

func (s *Server) crawl(c *gin.Context) {
	var req crawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Keyword == "" {
		fail(c, http.StatusBadRequest, "keyword required")
		return
	}
	if req.Platform == "" {
		req.Platform = "xhs"
	}
	if req.MaxCount <= 0 {
		req.MaxCount = 50
	}

	raw, err := s.crawls.Crawl(c.Request.Context(), req.Platform, req.Keyword, req.MaxCount, req.Cookie)
	if err != nil {
		fail(c, http.StatusInternalServerError, fmt.Sprintf("抓取失败: %v", err))
		return
	}
	cleaned := cleaner.Clean(raw, cleaner.DefaultOptions())

	uid := userID(c)
	s.buffer.Extend(uid, req.Keyword, req.Platform, cleaned)
	s.log.WithField("keyword", req.Keyword).Infof("crawl stored %d records for %s", len(cleaned), uid)

	ok(c, gin.H{"crawled": len(raw), "stored": len(cleaned)})
}

func (s *Server) crawlData(c *gin.Context) {
	uid := userID(c)
	ok(c, gin.H{
		"info":    s.buffer.Info(uid),
		"records": s.buffer.Data(uid),
	})
}

func (s *Server) crawlClear(c *gin.Context) {
	removed := s.buffer.Clear(userID(c))
	ok(c, gin.H{"removed": removed})
}

func (s *Server) listHistory(c *gin.Context) {
	if s.history == nil {
		fail(c, http.StatusServiceUnavailable, "history disabled")
		return
	}
	rows, err := s.history.ListHistory(c.Request.Context(), storage.HistoryQuery{UserID: userID(c)})
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, rows)
}

func (s *Server) exportXLSX(c *gin.Context) {
	uid := userID(c)
	records := s.buffer.Data(uid)
	if len(records) == 0 {
		fail(c, http.StatusNotFound, "缓冲区为空")
		return
	}

	keyword := ""
	if info := s.buffer.Info(uid); info != nil {
		keyword = info.Keyword
	}
	name := export.FileName(keyword, len(records))

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := export.WriteXLSX(c.Writer, records); err != nil {
		s.log.WithError(err).Error("export xlsx failed")
	}
}

// userID 从请求头取用户标识，缺省为演示用户。
func userID(c *gin.Context) string {
	if uid := c.GetHeader("X-User-ID"); uid != "" {
		return uid
	}
	return defaultUserID
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "ok", "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"code": status, "msg": msg, "data": nil})
}

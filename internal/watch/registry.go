package watch

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"opinion-radar/internal/model"
)

// CreateRequest 表示一条订阅注册请求。
type CreateRequest struct {
	Keyword           string             `json:"keyword"`
	Platform          string             `json:"platform"`
	MaxCount          int                `json:"max_count"`
	IntervalMinutes   int                `json:"interval_minutes"`
	PositiveThreshold *int               `json:"positive_threshold"`
	NegativeThreshold *int               `json:"negative_threshold"`
	Notify            model.NotifyTarget `json:"notify"`
	Enabled           *bool              `json:"enabled"`
}

// Registry 是进程内的订阅存储，唯一持有全部 Watch 实例。
// 读改写都走同一把锁，关闭并发 tick 与手动操作之间的竞态。
// 进程重启即丢失，属设计内的限制。
type Registry struct {
	mu      sync.Mutex
	watches []*model.Watch
	now     func() time.Time
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{now: time.Now}
}

// Create 校验并登记一条订阅，返回其快照。
func (r *Registry) Create(req CreateRequest, userID string) (model.Watch, error) {
	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		return model.Watch{}, fmt.Errorf("keyword required")
	}

	platform := strings.TrimSpace(req.Platform)
	if platform == "" {
		platform = "xhs"
	}
	if platform != "xhs" && platform != "zhihu" {
		return model.Watch{}, fmt.Errorf("unsupported platform %s", platform)
	}

	maxCount := req.MaxCount
	if maxCount <= 0 {
		maxCount = 50
	}
	intervalMinutes := req.IntervalMinutes
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	if userID == "" {
		userID = "demo_user"
	}

	ts := r.now().Unix()
	w := &model.Watch{
		ID:                uuid.NewString(),
		UserID:            userID,
		Keyword:           keyword,
		Platform:          platform,
		MaxCount:          maxCount,
		IntervalSeconds:   int64(intervalMinutes) * 60,
		PositiveThreshold: req.PositiveThreshold,
		NegativeThreshold: req.NegativeThreshold,
		Notify:            req.Notify,
		Enabled:           enabled,
		LastRun:           0,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}

	r.mu.Lock()
	r.watches = append(r.watches, w)
	r.mu.Unlock()

	return *w, nil
}

// List 返回订阅快照；userID 为空时返回全部。
func (r *Registry) List(userID string) []model.Watch {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Watch, 0, len(r.watches))
	for _, w := range r.watches {
		if userID != "" && w.UserID != userID {
			continue
		}
		out = append(out, *w)
	}
	return out
}

// Get 按 id 取订阅快照。
func (r *Registry) Get(id string) (model.Watch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.findLocked(id)
	if w == nil {
		return model.Watch{}, false
	}
	return *w, true
}

// Delete 移除订阅，存在则返回 true。
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, w := range r.watches {
		if w.ID == id {
			r.watches = append(r.watches[:i], r.watches[i+1:]...)
			return true
		}
	}
	return false
}

// SetEnabled 切换订阅开关。
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.findLocked(id)
	if w == nil {
		return false
	}
	w.Enabled = enabled
	w.UpdatedAt = r.now().Unix()
	return true
}

// MarkRun 在成功运行后推进 last_run；保证单调不减。
func (r *Registry) MarkRun(id string, ts int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.findLocked(id)
	if w == nil {
		return false
	}
	if ts > w.LastRun {
		w.LastRun = ts
	}
	w.UpdatedAt = r.now().Unix()
	return true
}

// Due 返回在 now 时刻到期（启用且间隔已满）的订阅快照。
func (r *Registry) Due(now int64) []model.Watch {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Watch, 0)
	for _, w := range r.watches {
		if !w.Enabled {
			continue
		}
		if now-w.LastRun >= w.IntervalSeconds {
			out = append(out, *w)
		}
	}
	return out
}

func (r *Registry) findLocked(id string) *model.Watch {
	for _, w := range r.watches {
		if w.ID == id {
			return w
		}
	}
	return nil
}

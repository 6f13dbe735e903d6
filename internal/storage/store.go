package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"opinion-radar/internal/model"
)

// Store 封装 SQLite 数据库访问，负责运行历史的写入与查询。
// 订阅本身按设计留在内存注册表里，这里只沉淀每次运行的审计记录。
type Store struct {
	db *gorm.DB
}

// HistoryQuery 描述历史查询条件。
type HistoryQuery struct {
	UserID string
	Limit  int
}

// NewStore 创建 Store 并自动迁移数据表。
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&model.RunHistory{}); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db}, nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// RecordRun 追加一条运行历史。
func (s *Store) RecordRun(ctx context.Context, h model.RunHistory) error {
	if h.Status == "" {
		h.Status = model.HistoryStatusCompleted
	}
	if err := s.db.WithContext(ctx).Create(&h).Error; err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListHistory 返回按时间倒序的运行历史，默认最多 20 条。
func (s *Store) ListHistory(ctx context.Context, query HistoryQuery) ([]model.RunHistory, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}

	q := s.db.WithContext(ctx).Model(&model.RunHistory{}).Order("created_at DESC").Limit(limit)
	if query.UserID != "" {
		q = q.Where("user_id = ?", query.UserID)
	}

	var rows []model.RunHistory
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return rows, nil
}

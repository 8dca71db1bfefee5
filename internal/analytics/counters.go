package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// counterStore 抽象出统计所需的 Redis 命令，方便测试替换。
type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	PFAdd(ctx context.Context, key string, els ...interface{}) *redis.IntCmd
	PFCount(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Tracker 基于 Redis 记录落地页的浏览与点击数据。
// 统计是尽力而为的，任何 Redis 故障都不应影响主流程。
type Tracker struct {
	store  counterStore
	logger *slog.Logger
}

// Stats 汇总一个活动落地页的访问数据。
type Stats struct {
	Views          int64 `json:"views"`
	UniqueVisitors int64 `json:"unique_visitors"`
	Clicks         int64 `json:"clicks"`
	UniqueClicks   int64 `json:"unique_clicks"`
}

func NewTracker(store counterStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger}
}

func viewsKey(eventID uint) string  { return fmt.Sprintf("analytics:event:%d:views", eventID) }
func uniqueKey(eventID uint) string { return fmt.Sprintf("analytics:event:%d:unique", eventID) }
func clicksKey(eventID uint) string { return fmt.Sprintf("analytics:event:%d:clicks", eventID) }
func uniqueClicksKey(eventID uint) string {
	return fmt.Sprintf("analytics:event:%d:clicks_unique", eventID)
}

// RecordView 记录一次页面浏览，visitorID 用于 HyperLogLog 去重。
func (t *Tracker) RecordView(ctx context.Context, eventID uint, visitorID string) {
	if err := t.store.Incr(ctx, viewsKey(eventID)).Err(); err != nil {
		t.logger.Warn("record page view failed", "event_id", eventID, "error", err)
		return
	}
	if visitorID == "" {
		return
	}
	if err := t.store.PFAdd(ctx, uniqueKey(eventID), visitorID).Err(); err != nil {
		t.logger.Warn("record unique visitor failed", "event_id", eventID, "error", err)
	}
}

// RecordClick 记录一次行动按钮点击，visitorID 非空时同时计入去重点击。
func (t *Tracker) RecordClick(ctx context.Context, eventID uint, visitorID string) {
	if err := t.store.Incr(ctx, clicksKey(eventID)).Err(); err != nil {
		t.logger.Warn("record button click failed", "event_id", eventID, "error", err)
		return
	}
	if visitorID == "" {
		return
	}
	if err := t.store.PFAdd(ctx, uniqueClicksKey(eventID), visitorID).Err(); err != nil {
		t.logger.Warn("record unique click failed", "event_id", eventID, "error", err)
	}
}

// Stats 读取一个活动的累计数据，键不存在时按 0 处理。
func (t *Tracker) Stats(ctx context.Context, eventID uint) (Stats, error) {
	var stats Stats

	views, err := t.store.Get(ctx, viewsKey(eventID)).Int64()
	if err != nil && err != redis.Nil {
		return Stats{}, fmt.Errorf("read view counter: %w", err)
	}
	stats.Views = views

	clicks, err := t.store.Get(ctx, clicksKey(eventID)).Int64()
	if err != nil && err != redis.Nil {
		return Stats{}, fmt.Errorf("read click counter: %w", err)
	}
	stats.Clicks = clicks

	unique, err := t.store.PFCount(ctx, uniqueKey(eventID)).Result()
	if err != nil && err != redis.Nil {
		return Stats{}, fmt.Errorf("read unique visitor counter: %w", err)
	}
	stats.UniqueVisitors = unique

	uniqueClicks, err := t.store.PFCount(ctx, uniqueClicksKey(eventID)).Result()
	if err != nil && err != redis.Nil {
		return Stats{}, fmt.Errorf("read unique click counter: %w", err)
	}
	stats.UniqueClicks = uniqueClicks

	return stats, nil
}

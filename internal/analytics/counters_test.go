package analytics

import (
	"context"
	"strconv"
	"testing"

	"github.com/redis/go-redis/v9"
)

type fakeCounterStore struct {
	counters map[string]int64
	sets     map[string]map[string]struct{}
	failIncr bool
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{
		counters: make(map[string]int64),
		sets:     make(map[string]map[string]struct{}),
	}
}

func (f *fakeCounterStore) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.failIncr {
		cmd.SetErr(redis.ErrClosed)
		return cmd
	}
	f.counters[key]++
	cmd.SetVal(f.counters[key])
	return cmd
}

func (f *fakeCounterStore) PFAdd(ctx context.Context, key string, els ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	for _, el := range els {
		set[el.(string)] = struct{}{}
	}
	cmd.SetVal(int64(len(set)))
	return cmd
}

func (f *fakeCounterStore) PFCount(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var total int64
	for _, key := range keys {
		total += int64(len(f.sets[key]))
	}
	cmd.SetVal(total)
	return cmd
}

func (f *fakeCounterStore) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := f.counters[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(strconv.FormatInt(val, 10))
	return cmd
}

func TestTrackerCountsViewsAndClicks(t *testing.T) {
	store := newFakeCounterStore()
	tracker := NewTracker(store, nil)
	ctx := context.Background()

	tracker.RecordView(ctx, 7, "visitor-a")
	tracker.RecordView(ctx, 7, "visitor-a")
	tracker.RecordView(ctx, 7, "visitor-b")
	tracker.RecordClick(ctx, 7, "visitor-a")
	tracker.RecordClick(ctx, 7, "visitor-a")

	stats, err := tracker.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Views != 3 {
		t.Errorf("Views = %d, want 3", stats.Views)
	}
	if stats.UniqueVisitors != 2 {
		t.Errorf("UniqueVisitors = %d, want 2", stats.UniqueVisitors)
	}
	if stats.Clicks != 2 {
		t.Errorf("Clicks = %d, want 2", stats.Clicks)
	}
	if stats.UniqueClicks != 1 {
		t.Errorf("UniqueClicks = %d, want 1", stats.UniqueClicks)
	}
}

func TestTrackerStatsMissingKeysAreZero(t *testing.T) {
	tracker := NewTracker(newFakeCounterStore(), nil)

	stats, err := tracker.Stats(context.Background(), 42)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestTrackerRecordViewSwallowsErrors(t *testing.T) {
	store := newFakeCounterStore()
	store.failIncr = true
	tracker := NewTracker(store, nil)

	// 不应 panic，也不应把错误冒泡给调用方。
	tracker.RecordView(context.Background(), 1, "visitor")
	tracker.RecordClick(context.Background(), 1, "visitor")
}

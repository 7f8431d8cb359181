package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"poe2openai/internal/core"
)

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	fs := NewFileStorage(path)

	stats := &core.RequestStats{
		TotalRequests:      3,
		SuccessfulRequests: 2,
		FailedRequests:     1,
		LastRequestTime:    time.Unix(1760000000, 0).UTC(),
		RequestHistory: []core.RequestRecord{
			{Timestamp: time.Unix(1760000000, 0).UTC(), Success: true, Model: "gpt-4o", Route: "/v1/chat/completions"},
		},
	}
	if err := fs.SaveStats(stats); err != nil {
		t.Fatalf("SaveStats failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("临时文件应已被重命名")
	}

	loaded, err := fs.LoadStats()
	if err != nil {
		t.Fatalf("LoadStats failed: %v", err)
	}
	if loaded.TotalRequests != 3 || loaded.FailedRequests != 1 {
		t.Errorf("计数不一致: %+v", loaded)
	}
	if len(loaded.RequestHistory) != 1 || loaded.RequestHistory[0].Route != "/v1/chat/completions" {
		t.Errorf("历史记录不一致: %+v", loaded.RequestHistory)
	}
}

func TestFileStorage_MissingFile(t *testing.T) {
	fs := NewFileStorage(filepath.Join(t.TempDir(), "missing.json"))

	stats, err := fs.LoadStats()
	if err != nil {
		t.Fatalf("缺失文件不应报错: %v", err)
	}
	if stats.RequestHistory == nil {
		t.Error("RequestHistory 应为空切片而非 nil")
	}
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	if err := os.WriteFile(path, []byte("{not json"), core.FilePermissionReadWrite); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if _, err := NewFileStorage(path).LoadStats(); err == nil {
		t.Error("损坏的文件应返回错误")
	}
}

func TestNewFileStorage_DefaultPath(t *testing.T) {
	if NewFileStorage("").filePath != core.StatsFilePath {
		t.Error("空路径应使用默认文件")
	}
}

func TestInitStorage_FileFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom-stats.json")
	t.Setenv("REDIS_URL", "")
	t.Setenv("STATS_FILE", path)

	st, err := InitStorage(&core.NopLogger{})
	if err != nil {
		t.Fatalf("InitStorage failed: %v", err)
	}
	fs, ok := st.(*FileStorage)
	if !ok {
		t.Fatalf("期望 FileStorage，实际 %T", st)
	}
	if fs.filePath != path {
		t.Errorf("STATS_FILE 未生效: %s", fs.filePath)
	}
}

func TestInitStorage_UnreachableRedisFallsBack(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://127.0.0.1:1/0")
	t.Setenv("STATS_FILE", filepath.Join(t.TempDir(), "stats.json"))

	st, err := InitStorage(&core.NopLogger{})
	if err != nil {
		t.Fatalf("InitStorage failed: %v", err)
	}
	if _, ok := st.(*FileStorage); !ok {
		t.Errorf("Redis 不可用时应回退到文件存储，实际 %T", st)
	}
}

func TestRedisStorage_RoundTrip(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	rs, err := NewRedisStorage(RedisStorageConfig{URL: redisURL, Key: "poe2openai:test:stats"})
	if err != nil {
		t.Fatalf("NewRedisStorage failed: %v", err)
	}
	defer func() {
		_ = rs.client.Del(rs.ctx, rs.key).Err()
		_ = rs.Close()
	}()

	if err := rs.SaveStats(&core.RequestStats{TotalRequests: 9}); err != nil {
		t.Fatalf("SaveStats failed: %v", err)
	}
	loaded, err := rs.LoadStats()
	if err != nil {
		t.Fatalf("LoadStats failed: %v", err)
	}
	if loaded.TotalRequests != 9 {
		t.Errorf("期望 9，实际 %d", loaded.TotalRequests)
	}
}

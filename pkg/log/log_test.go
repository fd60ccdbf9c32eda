package log

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerWritesToOutputPaths(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "out.log")

	logger := NewLogger(&Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{logFile},
	})
	logger.Infow("credentials refreshed", "origin", "https://api.univ.example")
	logger.Debugw("filtered out by level")
	logger.Errorw(errors.New("boom"), "refresh failed")
	logger.Sync()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "credentials refreshed")
	assert.Contains(t, string(content), `"err":"boom"`)
	assert.NotContains(t, string(content), "filtered out by level")
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "rotating.log")

	opts := NewOptions()
	opts.OutputPaths = nil
	opts.Format = "json"
	opts.FileConfig = NewFileOptions()
	WithFileName(logFile)(opts.FileConfig)
	WithFileMaxSize(1)(opts.FileConfig)
	WithEnableFileStorage(true)(opts)

	logger := NewLogger(opts)
	logger.Infow("文件存储测试", "test_key", "test_value")
	logger.Sync()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "文件存储测试"))
}

func TestWithContextFields(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "ctx.log")

	type tenantKey struct{}
	logger := NewLogger(&Options{Level: "debug", Format: "json", OutputPaths: []string{logFile}},
		WithContextExtractor(ContextExtractors{
			"tenant": func(ctx context.Context) string {
				v, _ := ctx.Value(tenantKey{}).(string)
				return v
			},
		}))

	ctx := WithRequestID(context.Background(), "req-12345")
	ctx = context.WithValue(ctx, tenantKey{}, "faculte-sciences")
	logger.W(ctx).Infow("带上下文的日志")
	logger.Sync()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"request_id":"req-12345"`)
	assert.Contains(t, string(content), `"tenant":"faculte-sciences"`)
}

func TestOptionsValidate(t *testing.T) {
	opts := NewOptions()
	assert.Empty(t, opts.Validate())

	opts.Level = "verbose"
	opts.Format = "xml"
	opts.EnableFileStorage = true
	opts.FileConfig = nil
	assert.Len(t, opts.Validate(), 3)
}

func TestGlobalLogger(t *testing.T) {
	Init(&Options{Level: "info", Format: "console", OutputPaths: []string{"stdout"}})
	Infow("测试日志", "key", "value")
	Errorw(errors.New("这是测试错误信息"), "测试错误日志")
	W(context.Background()).Infof("request %s done", "42")
	AddCallerSkip(1).Infow("调整后的调用位置", "key", "value")
	Sync()

	assert.NotNil(t, Default().Zap())
}

func TestFromZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core))

	logger.W(WithRequestID(context.Background(), "req-9")).Debugw("queued", "seq", 1)

	entries := logs.FilterMessage("queued").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
	assert.EqualValues(t, 1, entries[0].ContextMap()["seq"])
}

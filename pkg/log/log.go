// Package log is a zap based structured logger with optional rotating file storage.
package log

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the logging methods used across univadmin.
type Logger interface {
	Debugf(format string, args ...any)
	Debugw(msg string, kvs ...any)
	Infof(format string, args ...any)
	Infow(msg string, kvs ...any)
	Warnf(format string, args ...any)
	Warnw(msg string, kvs ...any)
	Errorf(format string, args ...any)
	Errorw(err error, msg string, kvs ...any)
	Panicw(msg string, kvs ...any)
	Fatalw(msg string, kvs ...any)

	// AddCallerSkip returns a logger that skips extra stack frames when reporting the caller.
	AddCallerSkip(skip int) Logger
	// W returns a logger carrying the fields extracted from ctx.
	W(ctx context.Context) Logger
	// Zap exposes the underlying zap logger for packages that accept *zap.Logger.
	Zap() *zap.Logger
	Sync()
}

// ContextExtractor pulls one field value out of a context.
type ContextExtractor func(ctx context.Context) string

// ContextExtractors maps a log field name to its extractor.
type ContextExtractors map[string]ContextExtractor

// Option configures a logger created by NewLogger or Init.
type Option func(*zapLogger)

// WithContextExtractor registers extra context extractors used by W.
func WithContextExtractor(extractors ContextExtractors) Option {
	return func(l *zapLogger) {
		for k, fn := range extractors {
			l.extractors[k] = fn
		}
	}
}

type zapLogger struct {
	z          *zap.Logger
	extractors ContextExtractors
}

var _ Logger = (*zapLogger)(nil)

var (
	mu  sync.RWMutex
	std = NewLogger(NewOptions())
	// pkgStd is std with one extra caller frame for the package level helpers.
	pkgStd = std.AddCallerSkip(1)
)

// Init replaces the global logger.
func Init(opts *Options, options ...Option) {
	l := NewLogger(opts, options...)

	mu.Lock()
	std = l
	pkgStd = l.AddCallerSkip(1)
	mu.Unlock()
}

// Default returns the global logger.
func Default() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

func global() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return pkgStd
}

// NewLogger builds a logger from opts. Invalid levels fall back to info.
func NewLogger(opts *Options, options ...Option) *zapLogger {
	if opts == nil {
		opts = NewOptions()
	}

	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.MessageKey = "message"
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig.EncodeDuration = func(d time.Duration, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendFloat64(float64(d) / float64(time.Millisecond))
	}

	var encoder zapcore.Encoder
	if opts.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		if opts.EnableColor {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var syncers []zapcore.WriteSyncer
	if len(opts.OutputPaths) > 0 {
		sink, _, err := zap.Open(opts.OutputPaths...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log output paths %v: %v\n", opts.OutputPaths, err)
			sink = zapcore.Lock(os.Stderr)
		}
		syncers = append(syncers, sink)
	}
	if opts.EnableFileStorage && opts.FileConfig != nil && opts.FileConfig.Filename != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FileConfig.Filename,
			MaxSize:    opts.FileConfig.MaxSize,
			MaxBackups: opts.FileConfig.MaxBackups,
			MaxAge:     opts.FileConfig.MaxAge,
			Compress:   opts.FileConfig.Compress,
			LocalTime:  opts.FileConfig.LocalTime,
		}))
	}
	if len(syncers) == 0 {
		syncers = append(syncers, zapcore.Lock(os.Stderr))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), zap.NewAtomicLevelAt(level))

	zapOpts := []zap.Option{zap.AddCallerSkip(1)}
	if !opts.DisableCaller {
		zapOpts = append(zapOpts, zap.AddCaller())
	}
	if !opts.DisableStacktrace {
		zapOpts = append(zapOpts, zap.AddStacktrace(zapcore.PanicLevel))
	}

	l := &zapLogger{
		z: zap.New(core, zapOpts...),
		extractors: ContextExtractors{
			"request_id": RequestID,
		},
	}
	for _, o := range options {
		o(l)
	}

	return l
}

// FromZap wraps an existing zap logger, e.g. one built on zaptest/observer.
func FromZap(z *zap.Logger, options ...Option) Logger {
	l := &zapLogger{z: z, extractors: ContextExtractors{"request_id": RequestID}}
	for _, o := range options {
		o(l)
	}
	return l
}

// NewNop returns a logger that discards everything, handy in tests.
func NewNop() Logger {
	return &zapLogger{z: zap.NewNop(), extractors: ContextExtractors{}}
}

func (l *zapLogger) Debugf(format string, args ...any) { l.z.Sugar().Debugf(format, args...) }
func (l *zapLogger) Debugw(msg string, kvs ...any)     { l.z.Sugar().Debugw(msg, kvs...) }
func (l *zapLogger) Infof(format string, args ...any)  { l.z.Sugar().Infof(format, args...) }
func (l *zapLogger) Infow(msg string, kvs ...any)      { l.z.Sugar().Infow(msg, kvs...) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.z.Sugar().Warnf(format, args...) }
func (l *zapLogger) Warnw(msg string, kvs ...any)      { l.z.Sugar().Warnw(msg, kvs...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.z.Sugar().Errorf(format, args...) }
func (l *zapLogger) Panicw(msg string, kvs ...any)     { l.z.Sugar().Panicw(msg, kvs...) }
func (l *zapLogger) Fatalw(msg string, kvs ...any)     { l.z.Sugar().Fatalw(msg, kvs...) }

func (l *zapLogger) Errorw(err error, msg string, kvs ...any) {
	l.z.Sugar().Errorw(msg, append(kvs, "err", err)...)
}

func (l *zapLogger) AddCallerSkip(skip int) Logger {
	return &zapLogger{z: l.z.WithOptions(zap.AddCallerSkip(skip)), extractors: l.extractors}
}

func (l *zapLogger) W(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}

	var fields []zap.Field
	for key, extract := range l.extractors {
		if v := extract(ctx); v != "" {
			fields = append(fields, zap.String(key, v))
		}
	}
	if len(fields) == 0 {
		return l
	}
	return &zapLogger{z: l.z.With(fields...), extractors: l.extractors}
}

func (l *zapLogger) Zap() *zap.Logger {
	return l.z.WithOptions(zap.AddCallerSkip(-1))
}

func (l *zapLogger) Sync() {
	_ = l.z.Sync()
}

// Package level helpers writing to the global logger.

func Debugf(format string, args ...any)        { global().Debugf(format, args...) }
func Debugw(msg string, kvs ...any)            { global().Debugw(msg, kvs...) }
func Infof(format string, args ...any)         { global().Infof(format, args...) }
func Infow(msg string, kvs ...any)             { global().Infow(msg, kvs...) }
func Warnf(format string, args ...any)         { global().Warnf(format, args...) }
func Warnw(msg string, kvs ...any)             { global().Warnw(msg, kvs...) }
func Errorf(format string, args ...any)        { global().Errorf(format, args...) }
func Errorw(err error, msg string, kvs ...any) { global().Errorw(err, msg, kvs...) }
func Panicw(msg string, kvs ...any)            { global().Panicw(msg, kvs...) }
func Fatalw(msg string, kvs ...any)            { global().Fatalw(msg, kvs...) }

// AddCallerSkip returns the global logger with extra skipped frames.
func AddCallerSkip(skip int) Logger { return global().AddCallerSkip(skip) }

// W returns the global logger enriched with ctx fields.
func W(ctx context.Context) Logger { return Default().W(ctx) }

// Sync flushes the global logger.
func Sync() { Default().Sync() }

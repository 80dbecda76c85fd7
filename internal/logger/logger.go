package logger

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var _ Logger = (*ZapLogger)(nil)

// ZapLogger implements Logger on top of zap.
type ZapLogger struct {
	z *zap.Logger
}

// New builds a logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) (*ZapLogger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var writers []zapcore.WriteSyncer
	if cfg.EnableConsole {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}
	if cfg.EnableFile {
		writers = append(writers, zapcore.AddSync(newRotationWriter(cfg.Rotation, cfg.OutputPath)))
	}
	return newWithSyncer(cfg, zapcore.NewMultiWriteSyncer(writers...)), nil
}

// NewWithWriter logs to w only. Used by tests that assert on output.
func NewWithWriter(cfg *Config, w io.Writer) *ZapLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return newWithSyncer(cfg, zapcore.AddSync(w))
}

func newWithSyncer(cfg *Config, ws zapcore.WriteSyncer) *ZapLogger {
	enc := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
	}
	if cfg.TimeFormat != "" {
		enc.EncodeTime = zapcore.TimeEncoderOfLayout(cfg.TimeFormat)
	}
	if cfg.Development {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var encoder zapcore.Encoder
	if cfg.Format == ConsoleFormat {
		encoder = zapcore.NewConsoleEncoder(enc)
	} else {
		encoder = zapcore.NewJSONEncoder(enc)
	}

	core := zapcore.NewCore(encoder, ws, parseLevel(cfg.Level))
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return &ZapLogger{z: zap.New(core, opts...)}
}

func newRotationWriter(cfg RotationConfig, path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
}

func parseLevel(l Level) zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *ZapLogger) Debug(msg string, kv ...interface{}) { l.z.Debug(msg, toFields(kv)...) }
func (l *ZapLogger) Info(msg string, kv ...interface{})  { l.z.Info(msg, toFields(kv)...) }
func (l *ZapLogger) Warn(msg string, kv ...interface{})  { l.z.Warn(msg, toFields(kv)...) }
func (l *ZapLogger) Error(msg string, kv ...interface{}) { l.z.Error(msg, toFields(kv)...) }

func (l *ZapLogger) DebugContext(ctx context.Context, msg string, kv ...interface{}) {
	l.z.Debug(msg, append(contextFields(ctx), toFields(kv)...)...)
}

func (l *ZapLogger) InfoContext(ctx context.Context, msg string, kv ...interface{}) {
	l.z.Info(msg, append(contextFields(ctx), toFields(kv)...)...)
}

func (l *ZapLogger) WarnContext(ctx context.Context, msg string, kv ...interface{}) {
	l.z.Warn(msg, append(contextFields(ctx), toFields(kv)...)...)
}

func (l *ZapLogger) ErrorContext(ctx context.Context, msg string, kv ...interface{}) {
	l.z.Error(msg, append(contextFields(ctx), toFields(kv)...)...)
}

// Named returns a child logger with name appended to the logger path.
func (l *ZapLogger) Named(name string) Logger { return &ZapLogger{z: l.z.Named(name)} }

// WithFields returns a child logger that always carries kv.
func (l *ZapLogger) WithFields(kv ...interface{}) Logger {
	fields := toFields(kv)
	if len(fields) == 0 {
		return l
	}
	return &ZapLogger{z: l.z.With(fields...)}
}

func (l *ZapLogger) Sync() error { return l.z.Sync() }

// toFields converts alternating key/value pairs. zap.Field values pass through.
// Odd-length input drops the dangling key.
func toFields(kv []interface{}) []zap.Field {
	if len(kv) == 0 {
		return nil
	}
	fields := make([]zap.Field, 0, len(kv)/2+1)
	for i := 0; i < len(kv); i++ {
		if f, ok := kv[i].(zap.Field); ok {
			fields = append(fields, f)
			continue
		}
		if i+1 >= len(kv) {
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			i++
			continue
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
		i++
	}
	return fields
}

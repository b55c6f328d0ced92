package diag

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 为结构化 JSON 日志器（zap）。
// 事件字段：comp、stage(start|finish|error)、code、dur_ms、count、file_id、kv；每行带 corr_id。
type Logger struct {
	z    *zap.Logger
	sink *RotatingFile
}

// NewLogger 以 level 初始化，日志写入 dir 下的轮转文件（10MiB）；dir 为空时写 stderr。
func NewLogger(corrID, level, dir string) *Logger {
	if strings.TrimSpace(dir) == "" {
		return NewLoggerTo(corrID, level, zapcore.Lock(os.Stderr))
	}
	sink := NewRotatingFile(dir, 10*1024*1024)
	l := NewLoggerTo(corrID, level, sink)
	l.sink = sink
	return l
}

// NewLoggerTo 写入任意 WriteSyncer（测试或自定义落地）。
func NewLoggerTo(corrID, level string, ws zapcore.WriteSyncer) *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.MessageKey = "msg"
	enc.CallerKey = zapcore.OmitKey
	enc.StacktraceKey = zapcore.OmitKey
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, zap.NewAtomicLevelAt(ParseLevel(level)))
	z := zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr))).With(zap.String("corr_id", corrID))
	return &Logger{z: z}
}

// NewNop 返回丢弃所有事件的日志器。
func NewNop() *Logger { return &Logger{z: zap.NewNop()} }

// ParseLevel 解析级别名；未知值按 info。
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func kvField(kv map[string]string) zap.Field {
	return zap.Object("kv", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		for k, v := range kv {
			enc.AddString(k, v)
		}
		return nil
	}))
}

func eventFields(comp, stage, fileID string, kv map[string]string, extra ...zap.Field) []zap.Field {
	fs := make([]zap.Field, 0, 4+len(extra))
	fs = append(fs, zap.String("comp", comp), zap.String("stage", stage))
	if fileID != "" {
		fs = append(fs, zap.String("file_id", fileID))
	}
	if len(kv) > 0 {
		fs = append(fs, kvField(kv))
	}
	return append(fs, extra...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "", nil)
}

// StartWith 记录带 file_id 与键值的 start。
func (l *Logger) StartWith(comp, msg, fileID string, kv map[string]string) *Timer {
	l.z.Info(msg, eventFields(comp, "start", fileID, kv)...)
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// DebugStart 输出调试级 start 事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID string, kv map[string]string) {
	if ce := l.z.Check(zapcore.DebugLevel, msg); ce != nil {
		ce.Write(eventFields(comp, "start", fileID, kv)...)
	}
}

// Warn 记录非致命事件（例如结果中带有诊断）。
func (l *Logger) Warn(comp, msg, fileID string, kv map[string]string) {
	l.z.Warn(msg, eventFields(comp, "finish", fileID, kv)...)
}

// ErrorWith 记录 error 事件。
func (l *Logger) ErrorWith(comp string, code Code, msg string, since *time.Time, fileID string) {
	var extra []zap.Field
	extra = append(extra, zap.String("code", string(code)))
	if since != nil {
		extra = append(extra, zap.Int64("dur_ms", time.Since(*since).Milliseconds()))
	}
	l.z.Error(msg, eventFields(comp, "error", fileID, nil, extra...)...)
}

// Close 刷新缓冲并关闭文件落地。
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish；count 为本阶段处理量。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.z.Info(msg, eventFields(t.comp, "finish", t.fileID, nil,
		zap.Int64("dur_ms", time.Since(t.t0).Milliseconds()), zap.Int64("count", count))...)
}

// Fail 以分类码记录该阶段失败。
func (t *Timer) Fail(err error) {
	if t == nil || t.l == nil {
		return
	}
	t.l.ErrorWith(t.comp, Classify(err), err.Error(), &t.t0, t.fileID)
}

// Since 返回阶段起点。
func (t *Timer) Since() time.Time {
	if t == nil {
		return time.Now()
	}
	return t.t0
}

// Package logging emite um registro JSON por evento, filtrado por nível mínimo.
//
// Cada linha contém timestamp (ISO-8601), level, message e os campos de meta
// espalhados no nível de cima. Não há buffer: cada chamada escreve de forma
// síncrona no sink.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return fmt.Sprintf("level(%d)", int8(l))
	}
	return levelNames[l]
}

// ParseLevel aceita debug, info, warn (ou warning) e error. Vazio vira info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// chaves reservadas do registro; meta com esses nomes ganha prefixo "meta_"
var reserved = map[string]bool{"timestamp": true, "level": true, "message": true}

type Logger struct {
	min Level
	z   *zap.Logger
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// New cria um logger com nível mínimo min.
// Com sink nil, debug/info vão para stdout e warn/error para stderr.
func New(min Level, sink io.Writer) *Logger {
	enc := zapcore.NewJSONEncoder(encoderConfig())
	threshold := min.zapLevel()

	var core zapcore.Core
	if sink != nil {
		core = zapcore.NewCore(enc, zapcore.AddSync(sink), threshold)
	} else {
		low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= threshold && l < zapcore.WarnLevel
		})
		high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= threshold && l >= zapcore.WarnLevel
		})
		core = zapcore.NewTee(
			zapcore.NewCore(enc, zapcore.Lock(os.Stdout), low),
			zapcore.NewCore(enc.Clone(), zapcore.Lock(os.Stderr), high),
		)
	}
	return &Logger{min: min, z: zap.New(core)}
}

// Nop descarta tudo.
func Nop() *Logger {
	return &Logger{min: LevelError + 1, z: zap.NewNop()}
}

func (l *Logger) Level() Level { return l.min }

func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.min
}

// Log nunca falha. Se meta não puder ser serializado em JSON, o registro sai
// apenas com a mensagem.
func (l *Logger) Log(level Level, msg string, meta map[string]any) {
	if !l.Enabled(level) {
		return
	}
	fields := metaFields(meta)
	switch level {
	case LevelDebug:
		l.z.Debug(msg, fields...)
	case LevelInfo:
		l.z.Info(msg, fields...)
	case LevelWarn:
		l.z.Warn(msg, fields...)
	default:
		l.z.Error(msg, fields...)
	}
}

func (l *Logger) Debug(msg string, meta map[string]any) { l.Log(LevelDebug, msg, meta) }
func (l *Logger) Info(msg string, meta map[string]any)  { l.Log(LevelInfo, msg, meta) }
func (l *Logger) Warn(msg string, meta map[string]any)  { l.Log(LevelWarn, msg, meta) }
func (l *Logger) Error(msg string, meta map[string]any) { l.Log(LevelError, msg, meta) }

func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}

func metaFields(meta map[string]any) []zap.Field {
	if len(meta) == 0 {
		return nil
	}
	if _, err := json.Marshal(meta); err != nil {
		return nil
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		name := k
		if reserved[name] {
			name = "meta_" + name
		}
		fields = append(fields, zap.Any(name, meta[k]))
	}
	return fields
}

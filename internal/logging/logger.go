// Package logging builds the zap loggers used across the service.
package logging

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// New returns a console or JSON logger writing to stderr, so command output on stdout
// stays machine readable. debug lowers the level to Debug.
func New(json bool, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if json {
		encoding = "json"
	}

	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "msg",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}

	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// TruncateForLog shortens s to limit runes, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// FindingFields renders PII findings for the audit channel: category counts and
// span offsets, never the matched content.
func FindingFields(findings []types.PIIFinding) []zap.Field {
	counts := make(map[string]int)
	spans := make([]string, 0, len(findings))
	for _, f := range findings {
		counts[string(f.Category)]++
		spans = append(spans, string(f.Category)+":"+strconv.Itoa(f.Start)+"-"+strconv.Itoa(f.End))
	}
	return []zap.Field{
		zap.Int("pii_findings", len(findings)),
		zap.Any("pii_categories", counts),
		zap.Strings("pii_spans", spans),
	}
}

package logger

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// WatermillAdapter routes the in-process bus's own logs into zap.
type WatermillAdapter struct {
	logger *zap.Logger
	fields watermill.LogFields
}

func NewWatermillAdapter(l *ZapLogger) *WatermillAdapter {
	return &WatermillAdapter{logger: l.logger.WithOptions(zap.AddCallerSkip(-1)).Named("watermill")}
}

func (a *WatermillAdapter) zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(a.fields)+len(fields))
	for k, v := range a.fields {
		if _, overridden := fields[k]; !overridden {
			out = append(out, zap.Any(k, v))
		}
	}
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(a.zapFields(fields), zap.Error(err))...)
}

func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, a.zapFields(fields)...)
}

func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, a.zapFields(fields)...)
}

// Trace is folded into debug; zap has no finer level.
func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, a.zapFields(fields)...)
}

func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(a.fields)+len(fields))
	for k, v := range a.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &WatermillAdapter{logger: a.logger, fields: merged}
}

package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggingProvider logs every request with its latency and token usage.
type LoggingProvider struct {
	inner    Provider
	provider string
	logger   *zap.Logger
}

// WithLogging wraps p so each Generate call is logged under the given
// provider name.
func WithLogging(p Provider, provider string, logger *zap.Logger) Provider {
	return &LoggingProvider{inner: p, provider: provider, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	fields := []zap.Field{
		zap.String("provider", l.provider),
		zap.String("model", l.inner.ModelID()),
		zap.String("purpose", PurposeFrom(ctx)),
		zap.Duration("latency", time.Since(start)),
		zap.Bool("success", err == nil),
	}
	if req.Schema != nil {
		fields = append(fields, zap.String("schema", req.Schema.Name))
	}
	if resp != nil {
		fields = append(fields,
			zap.String("served_model", resp.Model),
			zap.Int("input_tokens", resp.Usage.InputTokens),
			zap.Int("output_tokens", resp.Usage.OutputTokens),
		)
	}

	if err != nil {
		l.logger.Warn("llm request failed", append(fields, zap.Error(err))...)
	} else {
		l.logger.Debug("llm request", fields...)
	}
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

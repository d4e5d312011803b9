package obslog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("mira")

// StartSpan starts a span named name and returns a context carrying it plus
// a function that ends it. Used to wrap Oracle gather calls and orchestrator
// runs in spans and to propagate trace/span ids into log lines; it reports no
// duration itself, so callers that need one time it separately.
func StartSpan(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := tracer.Start(ctx, name)
	start := time.Now()
	return ctx, func() {
		span.SetAttributes()
		span.End(trace.WithTimestamp(start.Add(time.Since(start))))
	}
}

// Since returns milliseconds elapsed since start, rounded down.
func Since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

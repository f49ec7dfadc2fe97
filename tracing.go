package linkauth

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/linkauth"

func (e *Engine) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "linkauth."+op, trace.WithAttributes(attrs...))
}

// endSpan marks expected authentication outcomes (wrong password, bad code)
// as errors too; the kind attribute tells them apart from outages.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("linkauth.error_kind", KindOf(err).String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func userAttr(userID int64) attribute.KeyValue {
	return attribute.Int64("linkauth.user_id", userID)
}

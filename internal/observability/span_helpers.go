package observability

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FinishSpan ends the span, recording the error pointed to by errPtr if one
// is set. Pair it with a named error return:
//
//	defer observability.FinishSpan(span, &err)
//
// Handlers that report errors through the response instead pass nil.
func FinishSpan(span trace.Span, errPtr *error) {
	if span == nil {
		return
	}
	if errPtr != nil && *errPtr != nil {
		span.RecordError(*errPtr, trace.WithStackTrace(true))
		span.SetStatus(codes.Error, (*errPtr).Error())
	}
	span.End()
}

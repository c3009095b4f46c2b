package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer scope of remote call spans.
const InstrumentationName = "github.com/nimburion/endpointstore"

// StartRemoteCallSpan opens a client span for one remote endpoints call.
// The span is named "ENDPOINTS {method}" or "ENDPOINTS {service}.{method}".
func StartRemoteCallSpan(ctx context.Context, method string, opts ...RemoteCallSpanOption) (context.Context, trace.Span) {
	spanOpts := &remoteCallSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("rpc.method", method),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("ENDPOINTS %s", method)
	if spanOpts.service != "" {
		spanName = fmt.Sprintf("ENDPOINTS %s.%s", spanOpts.service, method)
	}

	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// RemoteCallSpanOption configures a remote call span.
type RemoteCallSpanOption func(*remoteCallSpanOptions)

type remoteCallSpanOptions struct {
	service    string
	attributes []attribute.KeyValue
}

// WithRPCSystem sets the transport, e.g. "rest" or "grpc".
func WithRPCSystem(system string) RemoteCallSpanOption {
	return func(opts *remoteCallSpanOptions) {
		if system != "" {
			opts.attributes = append(opts.attributes, attribute.String("rpc.system", system))
		}
	}
}

// WithRPCService sets the remote service or resource name.
func WithRPCService(service string) RemoteCallSpanOption {
	return func(opts *remoteCallSpanOptions) {
		if service != "" {
			opts.service = service
			opts.attributes = append(opts.attributes, attribute.String("rpc.service", service))
		}
	}
}

// WithRecordID sets the identity of the record the call targets.
func WithRecordID(id any) RemoteCallSpanOption {
	return func(opts *remoteCallSpanOptions) {
		if id != nil {
			opts.attributes = append(opts.attributes, attribute.String("endpoints.record_id", fmt.Sprint(id)))
		}
	}
}

// WithListOrder sets the order parameter of a list call.
func WithListOrder(order string) RemoteCallSpanOption {
	return func(opts *remoteCallSpanOptions) {
		if order != "" {
			opts.attributes = append(opts.attributes, attribute.String("endpoints.order", order))
		}
	}
}

// RecordError records err on span and marks it failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess marks span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

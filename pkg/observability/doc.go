// Package observability wires OpenTelemetry tracing and metrics for the
// SpendGate client, exporting both over OTLP gRPC.
//
// Initialize a provider at startup and shut it down on exit:
//
//	obs, err := observability.New(ctx, &observability.Config{
//		ServiceName:  "spendgate",
//		OTLPEndpoint: "otel-collector:4317",
//		SampleRate:   0.1, // 10% sampling in production
//		Enabled:      true,
//	})
//	defer obs.Shutdown(ctx)
//
// Track an item evaluation:
//
//	ctx, done := obs.TrackItem(ctx, "spendgate.gate.evaluate_item")
//	defer func() { done(err) }()
//
// Count outcomes:
//
//	obs.RecordOutcome(ctx, "approved")
//
// With Enabled false every call is a no-op, so callers never need to guard
// their instrumentation.
package observability

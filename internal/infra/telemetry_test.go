package infra

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTelemetryDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), TelemetryOptions{Enabled: false})
	if err != nil {
		t.Fatalf("InitTelemetry returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestEndSpanRecordsStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	_, okSpan := tracer.Start(context.Background(), "ok")
	EndSpan(okSpan, nil)
	_, failSpan := tracer.Start(context.Background(), "fail")
	EndSpan(failSpan, errors.New("boom"))
	EndSpan(nil, errors.New("ignored"))

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	if ended[0].Status().Code != codes.Ok {
		t.Fatalf("ok span status = %v", ended[0].Status().Code)
	}
	if ended[1].Status().Code != codes.Error || ended[1].Status().Description != "boom" {
		t.Fatalf("fail span status = %+v", ended[1].Status())
	}
	if len(ended[1].Events()) == 0 {
		t.Fatalf("expected the error to be recorded as a span event")
	}
}

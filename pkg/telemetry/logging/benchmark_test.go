package logging

import (
	"context"
	"io"
	"testing"
)

// BenchmarkLogger_Info_Enabled measures logging performance when enabled.
func BenchmarkLogger_Info_Enabled(b *testing.B) {
	logger, err := New(Config{Level: "info", Writer: io.Discard})
	if err != nil {
		b.Fatalf("Failed to create logger: %v", err)
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		logger.Info("test message", "key", "value", "count", i)
	}
}

// BenchmarkLogger_Debug_Disabled measures the cost of a filtered call.
func BenchmarkLogger_Debug_Disabled(b *testing.B) {
	logger, err := New(Config{Level: "info", RedactPII: true, Writer: io.Discard})
	if err != nil {
		b.Fatalf("Failed to create logger: %v", err)
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		logger.Debug("test message", "key", "value", "count", i)
	}
}

// BenchmarkLogger_WithRedaction measures logging with PII redaction enabled.
func BenchmarkLogger_WithRedaction(b *testing.B) {
	logger, err := New(Config{Level: "info", RedactPII: true, Writer: io.Discard})
	if err != nil {
		b.Fatalf("Failed to create logger: %v", err)
	}
	ctx := WithPatientID(context.Background(), "P001")

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		logger.InfoContext(ctx, "verification completed", "detail", "ssn 123-45-6789", "score", 0.9)
	}
}

package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// PatientIDKey is the context key for patient identifiers.
	PatientIDKey contextKey = "patient_id"

	// VisitIDKey is the context key for visit identifiers.
	VisitIDKey contextKey = "visit_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithPatientID adds a patient identifier to the context.
func WithPatientID(ctx context.Context, patientID string) context.Context {
	return context.WithValue(ctx, PatientIDKey, patientID)
}

// GetPatientID retrieves the patient identifier from the context.
func GetPatientID(ctx context.Context) string {
	if patientID, ok := ctx.Value(PatientIDKey).(string); ok {
		return patientID
	}
	return ""
}

// WithVisitID adds a visit identifier to the context.
func WithVisitID(ctx context.Context, visitID string) context.Context {
	return context.WithValue(ctx, VisitIDKey, visitID)
}

// GetVisitID retrieves the visit identifier from the context.
func GetVisitID(ctx context.Context) string {
	if visitID, ok := ctx.Value(VisitIDKey).(string); ok {
		return visitID
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
func extractContextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if patientID := GetPatientID(ctx); patientID != "" {
		fields = append(fields, "patient_id", patientID)
	}
	if visitID := GetVisitID(ctx); visitID != "" {
		fields = append(fields, "visit_id", visitID)
	}
	return fields
}

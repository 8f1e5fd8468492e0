// Package logging provides structured logging with PII redaction.
//
// # Overview
//
// The logging package builds a log/slog logger whose handler:
//   - Writes JSON or text records
//   - Redacts identifiers that must never reach a log (Medicare numbers,
//     SSNs, emails, phone numbers) from messages and attribute values
//   - Fully masks attributes whose key names sensitive data
//   - Adds request and patient ids carried in the context
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	ctx = logging.WithPatientID(ctx, "P001")
//	logger.InfoContext(ctx, "verification completed", "score", 0.9)
//
// # PII Redaction
//
// The default patterns are the same ones the compliance engine scans
// summaries for, plus email and phone:
//
//   - Medicare: 2123 45670 1 → **** ***** *
//   - SSN: 123-45-6789 → ***-**-****
//   - Emails: user@example.com → ***@***
//   - Phone: (555) 123-4567 → ***-***-****
package logging

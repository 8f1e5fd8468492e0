// Package audit provides the compliance audit trail.
//
// Every verification the service performs produces a TraceRecord: who was
// verified, the verdict, every alert, and the protocol configuration that
// was active. Records are written asynchronously by the recorder package so
// that verification latency never depends on storage, persisted by one of
// the storage backends, exported by the export package, and aged out by the
// retention package.
//
// # Digests
//
// Each record carries a SHA-256 digest of its RFC 8785 canonical JSON form
// (excluding the digest itself). The digest lets an auditor detect edits to
// a stored or exported record:
//
//	ok, err := record.VerifyDigest()
//
// # Statistics
//
// Stats mirrors the attestation summary: total runs, runs that were not
// safe to file, per-rule alert counts and the resulting compliance rate.
package audit

// Package export writes audit trace records as JSON, JSON Lines or CSV, and
// renders the HTML attestation report.
package export

package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// ComputeDigest returns the hex SHA-256 of the record's RFC 8785 canonical
// JSON form with the Digest field cleared.
func (r *TraceRecord) ComputeDigest() (string, error) {
	c := *r
	c.Digest = ""

	raw, err := json.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace record: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize trace record: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Seal sets the record's digest.
func (r *TraceRecord) Seal() error {
	d, err := r.ComputeDigest()
	if err != nil {
		return err
	}
	r.Digest = d
	return nil
}

// VerifyDigest reports whether the stored digest matches the record.
func (r *TraceRecord) VerifyDigest() (bool, error) {
	if r.Digest == "" {
		return false, nil
	}
	d, err := r.ComputeDigest()
	if err != nil {
		return false, err
	}
	return d == r.Digest, nil
}

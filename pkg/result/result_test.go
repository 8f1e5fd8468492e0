package result

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// TestResult_Success tests that a success Result exposes only its value.
func TestResult_Success(t *testing.T) {
	r := Success[int, string](42)

	if !r.IsSuccess() || r.IsFailure() {
		t.Fatalf("expected success, got failure")
	}
	v, ok := r.Value()
	if !ok || v != 42 {
		t.Errorf("Value() = %d, %v; want 42, true", v, ok)
	}
	if e, ok := r.Err(); ok || e != "" {
		t.Errorf("Err() = %q, %v; want \"\", false", e, ok)
	}
}

// TestResult_Failure tests that a failure Result exposes only its payload.
func TestResult_Failure(t *testing.T) {
	r := Failure[int, error](errors.New("boom"))

	if r.IsSuccess() {
		t.Fatalf("expected failure, got success")
	}
	if _, ok := r.Value(); ok {
		t.Errorf("Value() ok = true on failure")
	}
	e, ok := r.Err()
	if !ok || e.Error() != "boom" {
		t.Errorf("Err() = %v, %v; want boom, true", e, ok)
	}
}

// TestResult_ZeroValue tests that the zero Result is a failure.
func TestResult_ZeroValue(t *testing.T) {
	var r Result[string, []string]
	if r.IsSuccess() {
		t.Errorf("zero Result reported success")
	}
}

// TestFold tests both arms of Fold.
func TestFold(t *testing.T) {
	describe := func(r Result[int, string]) string {
		return Fold(r,
			func(v int) string { return "ok" },
			func(e string) string { return "failed: " + e },
		)
	}

	if got := describe(Success[int, string](1)); got != "ok" {
		t.Errorf("Fold(success) = %q", got)
	}
	if got := describe(Failure[int, string]("bad")); got != "failed: bad" {
		t.Errorf("Fold(failure) = %q", got)
	}
}

// TestResult_MarshalJSON tests the wire shape of both arms.
func TestResult_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   Result[int, []string]
		want string
	}{
		{"success", Success[int, []string](7), `{"is_success":true,"value":7}`},
		{"failure", Failure[int, []string]([]string{"a"}), `{"is_success":false,"error":["a"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal() failed: %v", err)
			}
			if got := strings.TrimSpace(string(data)); got != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

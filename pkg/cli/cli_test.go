package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type ruleTable [][]string

func (t ruleTable) Header() []string { return []string{"RULE", "SEVERITY"} }
func (t ruleTable) Rows() [][]string { return t }

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{" csv ", FormatCSV, false},
		{"junit", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}

	output, err := formatter.Format("test message")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(output) != "test message\n" {
		t.Errorf("Format() = %q, want %q", string(output), "test message\n")
	}
}

func TestTextFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	table := ruleTable{{"PENICILLIN", "CRITICAL"}, {"SULFA", "HIGH"}}

	if err := (&TextFormatter{}).FormatTo(buf, table); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	want := "RULE        SEVERITY\nPENICILLIN  CRITICAL\nSULFA       HIGH\n"
	if buf.String() != want {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), want)
	}
}

func TestJSONFormatter(t *testing.T) {
	data := map[string]int{"total_runs": 3}

	for _, indent := range []bool{false, true} {
		formatter := &JSONFormatter{Indent: indent}
		output, err := formatter.Format(data)
		if err != nil {
			t.Fatalf("Format() error = %v", err)
		}
		var decoded map[string]int
		if err := json.Unmarshal(output, &decoded); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if decoded["total_runs"] != 3 {
			t.Errorf("decoded = %v", decoded)
		}
		if indent != strings.Contains(string(output), "\n") {
			t.Errorf("indent=%v produced %q", indent, output)
		}
	}
}

func TestCSVFormatter(t *testing.T) {
	table := ruleTable{{"PENICILLIN", "CRITICAL"}, {"WITH,COMMA", "LOW"}}

	output, err := (&CSVFormatter{}).Format(table)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "RULE,SEVERITY\nPENICILLIN,CRITICAL\n\"WITH,COMMA\",LOW\n"
	if string(output) != want {
		t.Errorf("Format() = %q, want %q", output, want)
	}

	output, err = (&CSVFormatter{OmitHeader: true}).Format(table)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.HasPrefix(string(output), "RULE") {
		t.Errorf("header not omitted: %q", output)
	}

	if _, err := (&CSVFormatter{}).Format("not a table"); err == nil {
		t.Error("expected error for non-table data")
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatCSV).(*CSVFormatter); !ok {
		t.Error("expected CSVFormatter")
	}
	if _, ok := NewFormatter(FormatText).(*TextFormatter); !ok {
		t.Error("expected TextFormatter")
	}
}

func TestErrors(t *testing.T) {
	cfgErr := NewConfigError("audit.backend", "unsupported")
	if cfgErr.Error() != "config error in audit.backend: unsupported" {
		t.Errorf("ConfigError = %q", cfgErr.Error())
	}
	if NewConfigError("", "missing").Error() != "config error: missing" {
		t.Errorf("ConfigError without field = %q", NewConfigError("", "missing").Error())
	}

	cause := errors.New("boom")
	cmdErr := NewCommandError("verify", cause)
	if !errors.Is(cmdErr, cause) {
		t.Error("CommandError should unwrap to its cause")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("x"), 1},
		{"exit", &ExitError{Code: 2, Reason: "unsafe"}, 2},
		{"wrapped exit", fmt.Errorf("verify: %w", &ExitError{Code: 3}), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetupSignalHandler(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := SetupSignalHandler(parent)
	defer stop()

	select {
	case <-ctx.Done():
		t.Fatal("context should not be cancelled initially")
	default:
	}

	cancel()
	<-ctx.Done()
}

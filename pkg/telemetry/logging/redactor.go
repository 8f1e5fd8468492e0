package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"clinical-guardrails/guardrails/pkg/compliance"
	"clinical-guardrails/guardrails/pkg/config"
)

// Redactor redacts PII (Personally Identifiable Information) from log fields.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Default PII pattern names.
const (
	PatternMedicare = "medicare_number"
	PatternSSN      = "ssn"
	PatternEmail    = "email"
	PatternPhone    = "phone"
)

// sensitiveKeys are attribute key fragments whose values are masked whole.
var sensitiveKeys = []string{
	"password", "secret", "token", "authorization",
	"ssn", "medicare",
	"transcript", "summary", "raw_notes",
}

// NewRedactor creates a Redactor with the default patterns followed by the
// custom ones. Patterns apply in that order.
func NewRedactor(customPatterns []config.RedactPattern) (*Redactor, error) {
	r := &Redactor{}

	// Identifier patterns go first so the broader phone pattern does not
	// consume a Medicare number.
	r.add(PatternMedicare, compliance.MedicarePattern.Regexp, "**** ***** *")
	r.add(PatternSSN, compliance.SSNPattern.Regexp, "***-**-****")
	r.add(PatternEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "***@***")
	r.add(PatternPhone, regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\b\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), "***-***-****")

	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p.Name, err)
		}
		r.add(p.Name, regex, p.Replacement)
	}
	return r, nil
}

func (r *Redactor) add(name string, regex *regexp.Regexp, replacement string) {
	r.patterns = append(r.patterns, &redactPattern{
		name:        name,
		regex:       regex,
		replacement: replacement,
	})
}

// RedactString redacts PII from a string value.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}
	return redacted
}

// RedactAttr redacts one attribute, descending into groups.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if r == nil {
		return a
	}
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, ga := range group {
			redacted[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, redactValue(a.Value))
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			return slog.String(a.Key, r.RedactString(v.Error()))
		case fmt.Stringer:
			return slog.String(a.Key, r.RedactString(v.String()))
		}
	}
	return a
}

// isSensitiveKey checks if a key name indicates sensitive data.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// redactValue masks a sensitive value, keeping its length class.
func redactValue(v slog.Value) string {
	if v.Kind() == slog.KindString && v.String() == "" {
		return ""
	}
	return "***"
}

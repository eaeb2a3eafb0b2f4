package utils

import (
	"regexp"
	"strings"

	"github.com/PolarWolf314/cipherdesk/internal/ui"
)

// emailRegex is a simple regex for validating email format.
// It checks for: local-part@domain.tld format.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// FormatList formats resource IDs or emails as an indented bullet list.
func FormatList(items []string) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString("    - ")
		b.WriteString(ui.Highlight.Sprint(item))
		b.WriteString("\n")
	}
	return b.String()
}

// IsValidEmail checks if the given string is a valid email address format.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// ParseAssignments turns "name=value" pairs into a map. The value may
// itself contain '='.
func ParseAssignments(pairs []string) (map[string]string, error) {
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &AssignmentError{Pair: pair}
		}
		fields[name] = value
	}
	return fields, nil
}

// AssignmentError reports a malformed name=value pair.
type AssignmentError struct {
	Pair string
}

func (e *AssignmentError) Error() string {
	return "expected name=value, got " + e.Pair
}

// Package validation checks user supplied input for the interactions API.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrValidation is wrapped by every error returned from this package
var ErrValidation = errors.New("validation error")

const (
	maxNameLength   = 100
	maxNameWords    = 8
	maxMedications  = 20
	maxDosageLength = 50
	maxFrequency    = 48
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// Medication names: letters of any script, digits, spaces and safe punctuation
	nameRegex = regexp.MustCompile(`^[\p{L}\p{N}\s\-\.\+'%]+$`)

	// User hashes are opaque tokens produced by the client
	userHashRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{8,128}$`)

	// strings.Contains is cheaper than a regex for these substrings
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "$(", "${", "../", "..\\", "%2e%2e", "file://",
		"{$ne:", "{$gt:", "{$where:",
	}
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InputValidator validates request parameters
type InputValidator struct{}

// NewInputValidator creates a new input validator
func NewInputValidator() *InputValidator {
	return &InputValidator{}
}

// ValidateMedicationName validates one medication name as typed by the user
func (v *InputValidator) ValidateMedicationName(input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return invalid("medication name cannot be empty")
	}

	if utf8.RuneCountInString(trimmed) < 2 {
		return invalid("medication name too short: minimum 2 characters")
	}

	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return invalid("medication name too long: maximum %d characters", maxNameLength)
	}

	if len(strings.Fields(trimmed)) > maxNameWords {
		return invalid("medication name too complex: maximum %d words allowed", maxNameWords)
	}

	lowerInput := strings.ToLower(trimmed)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return invalid("medication name contains potentially dangerous content")
		}
	}

	if !nameRegex.MatchString(trimmed) {
		return invalid("medication name %q contains invalid characters. Only letters, numbers, spaces, hyphens, apostrophes, periods, plus and percent signs are allowed", trimmed)
	}

	if hasExcessiveRepetition(trimmed) {
		return invalid("medication name contains excessive character repetition")
	}

	return nil
}

// ValidateMedicationList validates every name of a request. Empty entries are
// skipped here; normalization discards them.
func (v *InputValidator) ValidateMedicationList(names []string) error {
	if len(names) > maxMedications {
		return invalid("too many medications: maximum %d allowed", maxMedications)
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if err := v.ValidateMedicationName(name); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUserHash validates the opaque user identifier
func (v *InputValidator) ValidateUserHash(input string) error {
	if input == "" {
		return invalid("userHash cannot be empty")
	}
	if !userHashRegex.MatchString(input) {
		return invalid("userHash must be 8 to 128 letters, digits, hyphens or underscores")
	}
	return nil
}

// ValidateDosage validates a free-text dosage such as "5mg"
func (v *InputValidator) ValidateDosage(input string) error {
	if utf8.RuneCountInString(input) > maxDosageLength {
		return invalid("dosage too long: maximum %d characters", maxDosageLength)
	}
	if input != "" && !nameRegex.MatchString(input) {
		return invalid("dosage contains invalid characters")
	}
	return nil
}

// ValidateFrequency validates the number of intakes per day
func (v *InputValidator) ValidateFrequency(n int) error {
	if n < 0 || n > maxFrequency {
		return invalid("frequency must be between 0 and %d, got %d", maxFrequency, n)
	}
	return nil
}

// hasExcessiveRepetition checks for the same character repeated more than 10 times consecutively
func hasExcessiveRepetition(input string) bool {
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}

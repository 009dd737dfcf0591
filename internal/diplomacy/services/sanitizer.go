package services

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go-concord/internal/diplomacy/models"

	"golang.org/x/text/unicode/norm"
)

// Sanitizer normalizes free text supplied by players
type Sanitizer struct {
	policy Policy
}

func NewSanitizer(policy Policy) *Sanitizer {
	return &Sanitizer{policy: policy}
}

// Clean applies NFC, drops control and format characters and collapses runs of whitespace
func (s *Sanitizer) Clean(text string) string {
	text = norm.NFC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case r == utf8.RuneError:
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Terms cleans every clause and enforces count and length limits
func (s *Sanitizer) Terms(terms []string) ([]string, error) {
	if len(terms) == 0 {
		return nil, models.Validation("terms", "at least one term is required")
	}
	if len(terms) > s.policy.MaxTerms {
		return nil, models.Validation("terms", "at most %d terms are allowed", s.policy.MaxTerms)
	}

	out := make([]string, 0, len(terms))
	for i, term := range terms {
		clean := s.Clean(term)
		if clean == "" {
			return nil, models.Validation("terms", "term %d is empty", i)
		}
		if n := utf8.RuneCountInString(clean); n > s.policy.MaxTermLength {
			return nil, models.Validation("terms", "term %d is %d characters, limit is %d", i, n, s.policy.MaxTermLength)
		}
		out = append(out, clean)
	}
	return out, nil
}

// Name cleans an alliance name and enforces its length bounds
func (s *Sanitizer) Name(name string) (string, error) {
	clean := s.Clean(name)
	if clean == "" {
		return "", models.Validation("name", "name is required")
	}
	if n := utf8.RuneCountInString(clean); n > s.policy.MaxNameLength {
		return "", models.Validation("name", "name is %d characters, limit is %d", n, s.policy.MaxNameLength)
	}
	return clean, nil
}

func validateTeam(field, id string) error {
	if !models.ValidTeamID(id) {
		return models.Validation(field, "invalid team id %q", id)
	}
	return nil
}

func validatePair(a, b string) error {
	if err := validateTeam("team", a); err != nil {
		return err
	}
	if err := validateTeam("target_team", b); err != nil {
		return err
	}
	if a == b {
		return models.Validation("target_team", "a team has no relation with itself")
	}
	return nil
}

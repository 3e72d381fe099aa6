// Package bot decides whether an inbound message should trigger an
// automated reply, and which reply to send.
package bot

import (
	"context"
	"log"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rule is one keyword -> response mapping.
type Rule struct {
	Trigger  string
	Response string
}

// ButtonRule is a template-embedded button with a canned response.
type ButtonRule struct {
	Text     string
	Response string
}

// RuleSource supplies the active rule set. Implemented by the store;
// faked in tests.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]Rule, error)
	TemplateButtons(ctx context.Context) ([]ButtonRule, error)
}

type Matcher struct {
	Rules RuleSource
}

func NewMatcher(rules RuleSource) *Matcher {
	return &Matcher{Rules: rules}
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases, trims and removes diacritics so that "Horário"
// matches a rule stored as "horario".
func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	folded, _, err := transform.String(stripAccents, s)
	if err != nil {
		return s
	}
	return folded
}

// Match finds the reply for an inbound text. First match wins in stored
// order: an exact pass over all rules, then a mutual-substring pass,
// then template buttons as a fallback. Rules are not ranked by
// specificity; overlapping triggers resolve to whichever is stored
// first. No match is not an error.
func (m *Matcher) Match(ctx context.Context, text string) (string, bool) {
	needle := fold(text)
	if needle == "" {
		return "", false
	}

	rules, err := m.Rules.ActiveRules(ctx)
	if err != nil {
		log.Printf("Error loading bot responses: %v", err)
	}

	for _, r := range rules {
		if fold(r.Trigger) == needle {
			return r.Response, true
		}
	}

	for _, r := range rules {
		trigger := fold(r.Trigger)
		if trigger == "" {
			continue
		}
		if strings.Contains(needle, trigger) || strings.Contains(trigger, needle) {
			return r.Response, true
		}
	}

	buttons, err := m.Rules.TemplateButtons(ctx)
	if err != nil {
		log.Printf("Error loading template buttons: %v", err)
	}

	for _, b := range buttons {
		if b.Text == "" || b.Response == "" {
			continue
		}
		label := fold(b.Text)
		if label == needle || strings.Contains(needle, label) || strings.Contains(label, needle) {
			return b.Response, true
		}
	}

	return "", false
}

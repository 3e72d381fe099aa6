package bot

import (
	"context"
	"testing"
)

type fakeRuleSource struct {
	rules   []Rule
	buttons []ButtonRule
}

func (f *fakeRuleSource) ActiveRules(ctx context.Context) ([]Rule, error) {
	return f.rules, nil
}

func (f *fakeRuleSource) TemplateButtons(ctx context.Context) ([]ButtonRule, error) {
	return f.buttons, nil
}

func TestMatchExact(t *testing.T) {
	m := NewMatcher(&fakeRuleSource{rules: []Rule{{Trigger: "Oi", Response: "Olá!"}}})

	reply, ok := m.Match(context.Background(), "  oi  ")
	if !ok || reply != "Olá!" {
		t.Errorf("Match = (%q, %v), want (Olá!, true)", reply, ok)
	}
}

func TestMatchExactWinsOverPartial(t *testing.T) {
	// Rule "o" is stored first and would match "oi" partially; the
	// exact pass must still pick "oi".
	m := NewMatcher(&fakeRuleSource{rules: []Rule{
		{Trigger: "o", Response: "B"},
		{Trigger: "oi", Response: "A"},
	}})

	reply, ok := m.Match(context.Background(), "oi")
	if !ok || reply != "A" {
		t.Errorf("Match = (%q, %v), want (A, true)", reply, ok)
	}
}

func TestMatchPartialBothDirections(t *testing.T) {
	m := NewMatcher(&fakeRuleSource{rules: []Rule{{Trigger: "horario", Response: "8h-18h"}}})

	// Inbound contains trigger.
	if reply, ok := m.Match(context.Background(), "qual o horario de voces?"); !ok || reply != "8h-18h" {
		t.Errorf("inbound-contains-trigger: got (%q, %v)", reply, ok)
	}

	// Trigger contains inbound.
	if reply, ok := m.Match(context.Background(), "horar"); !ok || reply != "8h-18h" {
		t.Errorf("trigger-contains-inbound: got (%q, %v)", reply, ok)
	}
}

func TestMatchAccentInsensitive(t *testing.T) {
	m := NewMatcher(&fakeRuleSource{rules: []Rule{{Trigger: "horario", Response: "8h-18h"}}})

	reply, ok := m.Match(context.Background(), "horário")
	if !ok || reply != "8h-18h" {
		t.Errorf("Match(horário) = (%q, %v), want (8h-18h, true)", reply, ok)
	}
}

func TestMatchTemplateButtonFallback(t *testing.T) {
	m := NewMatcher(&fakeRuleSource{
		buttons: []ButtonRule{
			{Text: "Quero saber mais", Response: "Aqui vai o material!"},
			{Text: "sem resposta", Response: ""}, // ignored: no response set
		},
	})

	reply, ok := m.Match(context.Background(), "quero saber mais")
	if !ok || reply != "Aqui vai o material!" {
		t.Errorf("Match = (%q, %v)", reply, ok)
	}
}

func TestMatchRulesBeforeButtons(t *testing.T) {
	m := NewMatcher(&fakeRuleSource{
		rules:   []Rule{{Trigger: "preço", Response: "da tabela"}},
		buttons: []ButtonRule{{Text: "preço", Response: "do botão"}},
	})

	reply, ok := m.Match(context.Background(), "preço")
	if !ok || reply != "da tabela" {
		t.Errorf("Match = (%q, %v), want rule response first", reply, ok)
	}
}

func TestMatchNothing(t *testing.T) {
	m := NewMatcher(&fakeRuleSource{rules: []Rule{{Trigger: "oi", Response: "A"}}})

	if reply, ok := m.Match(context.Background(), "xyzxyz"); ok {
		t.Errorf("expected no match, got %q", reply)
	}

	if _, ok := m.Match(context.Background(), "   "); ok {
		t.Error("blank input must never match")
	}
}

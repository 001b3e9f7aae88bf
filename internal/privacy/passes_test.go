package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassesIndependently(t *testing.T) {
	t.Run("WhatsAppReusesExistingAlias", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register("Борис")

		out := WhatsAppSenders(IsProbablePersonName).Apply("02.02.2024, 08:00 - Борис: утро", reg)

		assert.Equal(t, "02.02.2024, 08:00 - USER_1: утро", out)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("WhatsAppKeepsSeparators", func(t *testing.T) {
		reg := NewRegistry()
		out := WhatsAppSenders(IsProbablePersonName).Apply("02.02.2024,\t08:00 -  Борис : утро: да", reg)
		assert.Equal(t, "02.02.2024,\t08:00 -  USER_1 : утро: да", out)
	})

	t.Run("RedactionDisabled", func(t *testing.T) {
		rule := DefaultRules()[0]
		rule.Enabled = false
		reg := NewRegistry()

		out := Redaction(rule).Apply("+79991234567", reg)

		assert.Equal(t, "+79991234567", out)
		assert.Equal(t, 0, reg.Redactions(EntityPhone))
	})

	t.Run("SweepWithoutRegistryIsNoop", func(t *testing.T) {
		assert.Equal(t, "Анна", NameSweep(false).Apply("Анна", NewRegistry()))
	})

	t.Run("SweepInsertionOrder", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register("Анна")
		reg.Register("Анна Мария")

		// The shorter name is swept first, so the longer one no longer matches.
		out := NameSweep(false).Apply("Анна Мария", reg)
		assert.Equal(t, "USER_1 Мария", out)
	})
}

func TestReplaceWholeWord(t *testing.T) {
	tests := []struct {
		text, want string
	}{
		{"Ян", "X"},
		{"Ян Ян", "X X"},
		{"Янтарь", "Янтарь"},
		{"_Ян", "_Ян"},
		{"(Ян)", "(X)"},
		{"ЯнЯн Ян", "ЯнЯн X"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, replaceWholeWord(tt.text, "Ян", "X"), tt.text)
	}
}

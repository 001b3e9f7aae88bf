package privacy

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/raaihank/chatpsy/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromName(name string) string {
	return `<div class="from_name">` + name + `</div>`
}

func TestAnonymizeTelegramSenders(t *testing.T) {
	t.Run("SingleName", func(t *testing.T) {
		res := Anonymize(fromName("Иван Петров") + "Привет!")

		assert.Equal(t, fromName("USER_1")+"Привет!", res.Anonymized)
		assert.Equal(t, map[string]string{"Иван Петров": "USER_1"}, res.Mapping)
	})

	t.Run("StableNumbering", func(t *testing.T) {
		input := fromName("Мария") + fromName("Иван") + fromName("Мария")

		res := Anonymize(input)

		assert.Equal(t, fromName("USER_1")+fromName("USER_2")+fromName("USER_1"), res.Anonymized)
		assert.Equal(t, map[string]string{"Мария": "USER_1", "Иван": "USER_2"}, res.Mapping)
		assert.Equal(t, 2, strings.Count(res.Anonymized, "USER_1"))
	})

	t.Run("ThreeParticipants", func(t *testing.T) {
		res := Anonymize(fromName("Алексей") + fromName("Борис") + fromName("Виктор"))

		assert.Equal(t, map[string]string{
			"Алексей": "USER_1",
			"Борис":   "USER_2",
			"Виктор":  "USER_3",
		}, res.Mapping)
	})

	t.Run("WhitespaceAroundNameKept", func(t *testing.T) {
		res := Anonymize(fromName("\n  Иван  \n"))

		assert.Equal(t, fromName("\n  USER_1  \n"), res.Anonymized)
		assert.Equal(t, map[string]string{"Иван": "USER_1"}, res.Mapping)
	})

	t.Run("ExtraAttributeSpacing", func(t *testing.T) {
		res := Anonymize(`<div   class="from_name">Ольга</div>`)
		assert.Equal(t, `<div   class="from_name">USER_1</div>`, res.Anonymized)
	})
}

func TestAnonymizeNonPersons(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"SystemMessage", fromName("вы ушли с маршрута")},
		{"ContainsDigit", fromName("User123")},
		{"TooLong", fromName(strings.Repeat("A", 100))},
		{"Blank", fromName("   ")},
		{"UnclosedTag", `<div class="from_name">Иван`},
		{"Alias", fromName("USER_7")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Anonymize(tt.input)
			assert.Equal(t, tt.input, res.Anonymized)
			assert.Empty(t, res.Mapping)
		})
	}
}

func TestAnonymizeRedaction(t *testing.T) {
	t.Run("Phones", func(t *testing.T) {
		for _, phone := range []string{"+1234567890", "8 (800) 555-35-35", "+7-999-123-4567", "+7 (999) 123-45-67"} {
			res := Anonymize("Позвони: " + phone)
			assert.Equal(t, "Позвони: [PHONE]", res.Anonymized, phone)
		}
	})

	t.Run("UnicodeSeparators", func(t *testing.T) {
		tests := []struct {
			name  string
			phone string
		}{
			{"nbsp", "+7\u00a0999\u00a0123\u00a045\u00a067"},
			{"narrow nbsp", "8\u202f800\u202f555\u202f35\u202f35"},
			{"vertical tab", "+7\v999 123 45 67"},
			{"ideographic space", "+7\u3000999\u3000123-45-67"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res := Anonymize("tel " + tt.phone + " ok")
				assert.Equal(t, "tel [PHONE] ok", res.Anonymized)
			})
		}
	})

	t.Run("ShortNumbersKept", func(t *testing.T) {
		res := Anonymize("Код 12345, квартира 42")
		assert.Equal(t, "Код 12345, квартира 42", res.Anonymized)
	})

	t.Run("Emails", func(t *testing.T) {
		for _, email := range []string{"simple@example.com", "user.name+tag@example.co.uk", "test_user123@subdomain.example.org"} {
			res := Anonymize("пиши на " + email + " вечером")
			assert.Equal(t, "пиши на [EMAIL] вечером", res.Anonymized, email)
		}
	})

	t.Run("NoNamesInvolved", func(t *testing.T) {
		res := Anonymize("+7 (999) 123-45-67 и user@example.com")

		assert.Equal(t, "[PHONE] и [EMAIL]", res.Anonymized)
		assert.Empty(t, res.Mapping)
		assert.NotNil(t, res.Mapping)
		assert.Equal(t, []Finding{
			{EntityType: EntityPhone, Masked: PhoneToken, Count: 1},
			{EntityType: EntityEmail, Masked: EmailToken, Count: 1},
		}, res.Findings)
	})

	t.Run("MixedWithName", func(t *testing.T) {
		input := fromName("Сергей") + `<div class="text">Мой номер +79991234567, почта sergey@mail.ru</div>`

		res := Anonymize(input)

		assert.Equal(t, fromName("USER_1")+`<div class="text">Мой номер [PHONE], почта [EMAIL]</div>`, res.Anonymized)
		assert.NotContains(t, res.Anonymized, "Сергей")
		assert.NotContains(t, res.Anonymized, "+7999")
		assert.Equal(t, map[string]string{"Сергей": "USER_1"}, res.Mapping)
	})
}

func TestAnonymizeWhatsApp(t *testing.T) {
	t.Run("LinePreserved", func(t *testing.T) {
		res := Anonymize("12.03.2024, 21:15 - Maria: How are you?")

		assert.Equal(t, "12.03.2024, 21:15 - USER_1: How are you?", res.Anonymized)
		assert.Equal(t, map[string]string{"Maria": "USER_1"}, res.Mapping)
	})

	t.Run("UnicodeSeparators", func(t *testing.T) {
		res := Anonymize("12.03.2024,\u00a021:15\u202f-\u202fMaria:\u00a0Hi")

		assert.Equal(t, "12.03.2024,\u00a021:15\u202f-\u202fUSER_1:\u00a0Hi", res.Anonymized)
		assert.Equal(t, map[string]string{"Maria": "USER_1"}, res.Mapping)
	})

	t.Run("Cyrillic", func(t *testing.T) {
		res := Anonymize("12.03.2024, 21:15 - Александр: Привет всем!")
		assert.Equal(t, "12.03.2024, 21:15 - USER_1: Привет всем!", res.Anonymized)
	})

	t.Run("MultiLine", func(t *testing.T) {
		input := "01.01.2024, 10:00 - Анна: Привет\n" +
			"01.01.2024, 10:01 - Борис: Как дела?\n" +
			"01.01.2024, 10:02 - Анна: Отлично"

		res := Anonymize(input)

		assert.Equal(t, "01.01.2024, 10:00 - USER_1: Привет\n"+
			"01.01.2024, 10:01 - USER_2: Как дела?\n"+
			"01.01.2024, 10:02 - USER_1: Отлично", res.Anonymized)
	})

	t.Run("SystemSenderKept", func(t *testing.T) {
		input := "01.01.2024, 10:00 - сообщения защищены: шифрование"
		assert.Equal(t, input, Anonymize(input).Anonymized)
	})

	t.Run("TelegramNamesNumberedFirst", func(t *testing.T) {
		input := "01.01.2024, 10:00 - Анна: Привет\n" + fromName("Борис") + "\n01.01.2024, 10:01 - Борис: Ку"

		res := Anonymize(input)

		assert.Equal(t, map[string]string{"Борис": "USER_1", "Анна": "USER_2"}, res.Mapping)
		assert.Equal(t, "01.01.2024, 10:00 - USER_2: Привет\n"+fromName("USER_1")+"\n01.01.2024, 10:01 - USER_1: Ку", res.Anonymized)
	})
}

func TestAnonymizeSweep(t *testing.T) {
	t.Run("FreeTextMentions", func(t *testing.T) {
		input := fromName("Анна") + `<div class="text">Привет!</div>` + "\n" +
			`<div class="text">Анна сказала, что придёт</div>`

		res := Anonymize(input)

		assert.NotContains(t, res.Anonymized, "Анна")
		assert.Equal(t, 2, strings.Count(res.Anonymized, "USER_1"))
	})

	t.Run("LiteralSubstringByDefault", func(t *testing.T) {
		res := Anonymize(fromName("Ян") + "Янтарь и Ян")
		assert.Equal(t, fromName("USER_1")+"USER_1тарь и USER_1", res.Anonymized)
	})

	t.Run("WholeWordOption", func(t *testing.T) {
		a, err := New(config.PrivacyConfig{WholeWordSweep: true}, nil)
		require.NoError(t, err)

		res := a.Anonymize(fromName("Ян") + "Янтарь и Ян, ЯнЯн")

		assert.Equal(t, fromName("USER_1")+"Янтарь и USER_1, ЯнЯн", res.Anonymized)
	})
}

func TestAnonymizeProperties(t *testing.T) {
	input := fromName("Мария") + `<div class="text">Мой телефон +7 (999) 123-45-67</div>` + "\n" +
		fromName("Иван") + `<div class="text">Мария, пиши на ivan@example.com</div>` + "\n" +
		"05.06.2024, 09:30 - Ольга: Мария и Иван, привет"

	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, Anonymize(input), Anonymize(input))
	})

	t.Run("NoLeakage", func(t *testing.T) {
		res := Anonymize(input)
		require.Len(t, res.Mapping, 3)
		for name := range res.Mapping {
			assert.NotContains(t, res.Anonymized, name)
		}
		for _, alias := range res.Mapping {
			assert.Contains(t, res.Anonymized, alias)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		first := Anonymize(input)
		second := Anonymize(first.Anonymized)

		assert.Equal(t, first.Anonymized, second.Anonymized)
		assert.Empty(t, second.Mapping)
	})

	t.Run("Empty", func(t *testing.T) {
		res := Anonymize("")
		assert.Equal(t, "", res.Anonymized)
		assert.NotNil(t, res.Mapping)
		assert.Empty(t, res.Mapping)
		assert.Empty(t, res.Findings)
	})

	t.Run("FreshRegistryPerCall", func(t *testing.T) {
		assert.Equal(t, map[string]string{"Пётр": "USER_1"}, Anonymize(fromName("Пётр")).Mapping)
		assert.Equal(t, map[string]string{"Зоя": "USER_1"}, Anonymize(fromName("Зоя")).Mapping)
	})
}

func TestAnonymizeConcurrent(t *testing.T) {
	a, err := New(config.PrivacyConfig{}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("Name%c", 'a'+rune(i%26))
			res := a.Anonymize(fromName(name) + fromName("Общий"))
			assert.Equal(t, map[string]string{name: "USER_1", "Общий": "USER_2"}, res.Mapping)
		}(i)
	}
	wg.Wait()
}

func TestNewOptions(t *testing.T) {
	t.Run("Passes", func(t *testing.T) {
		a, err := New(config.PrivacyConfig{}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{
			PassTelegramSenders,
			PassPhoneRedaction,
			PassEmailRedaction,
			PassWhatsAppSenders,
			PassNameSweep,
		}, a.Passes())
	})

	t.Run("CustomPredicate", func(t *testing.T) {
		onlyBob := func(s string) bool { return s == "bob" }
		a, err := New(config.PrivacyConfig{}, nil, WithNamePredicate(onlyBob))
		require.NoError(t, err)

		res := a.Anonymize(fromName("bob") + fromName("Alice"))

		assert.Equal(t, fromName("USER_1")+fromName("Alice"), res.Anonymized)
		assert.Equal(t, map[string]string{"bob": "USER_1"}, res.Mapping)
	})

	t.Run("CustomPasses", func(t *testing.T) {
		upper := NewPass("upper", func(text string, _ *Registry) string { return strings.ToUpper(text) })
		a, err := New(config.PrivacyConfig{}, nil, WithPasses(upper))
		require.NoError(t, err)

		assert.Equal(t, []string{"upper"}, a.Passes())
		assert.Equal(t, "HI", a.Anonymize("hi").Anonymized)
	})

	t.Run("NilPredicate", func(t *testing.T) {
		_, err := New(config.PrivacyConfig{}, nil, WithNamePredicate(nil))
		assert.Error(t, err)
	})

	t.Run("NilPass", func(t *testing.T) {
		_, err := New(config.PrivacyConfig{}, nil, WithPasses(nil))
		assert.Error(t, err)
	})
}

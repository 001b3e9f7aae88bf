package privacy

import "regexp"

// space matches the characters browsers treat as whitespace in patterns.
// RE2's \s is ASCII-only; chat exports routinely contain U+00A0 and U+202F.
const space = `\s\v\x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}`

var (
	// Telegram HTML export: <div class="from_name">Name</div>. Group 1 is the sender.
	telegramSenderPattern = regexp.MustCompile(`<div[` + space + `]+class="from_name">([^<]+)</div>`)

	// WhatsApp text export: "DD.MM.YYYY, HH:MM - Sender: message". Group 3 is the sender.
	whatsappLinePattern = regexp.MustCompile(`(?m)^(\d{2}\.\d{2}\.\d{4}),[` + space + `](\d{2}:\d{2})[` + space + `]-[` + space + `]([^:]+):[` + space + `](.*)$`)

	phonePattern = regexp.MustCompile(`\+?\d[\d` + space + `\-()]{8,}\d`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// DefaultRules returns the redaction rules in execution order: phone
// numbers first, then email addresses.
func DefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			Name:        EntityPhone,
			Pattern:     phonePattern,
			Replacement: PhoneToken,
			Enabled:     true,
		},
		{
			Name:        EntityEmail,
			Pattern:     emailPattern,
			Replacement: EmailToken,
			Enabled:     true,
		},
	}
}

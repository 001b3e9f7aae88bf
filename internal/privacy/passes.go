package privacy

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Built-in pass names, in pipeline order.
const (
	PassTelegramSenders = "telegram_senders"
	PassPhoneRedaction  = "phone_redaction"
	PassEmailRedaction  = "email_redaction"
	PassWhatsAppSenders = "whatsapp_senders"
	PassNameSweep       = "name_sweep"
)

// Pass is one global rewrite over the working buffer. Passes may read and
// extend the registry; they must not touch anything else.
type Pass interface {
	Name() string
	Apply(text string, reg *Registry) string
}

type funcPass struct {
	name string
	fn   func(string, *Registry) string
}

func (p funcPass) Name() string { return p.name }
func (p funcPass) Apply(text string, reg *Registry) string { return p.fn(text, reg) }

// NewPass wraps fn as a named Pass.
func NewPass(name string, fn func(text string, reg *Registry) string) Pass {
	return funcPass{name: name, fn: fn}
}

// DefaultPasses builds the standard five-pass pipeline.
func DefaultPasses(isName NamePredicate, wholeWordSweep bool) []Pass {
	passes := []Pass{TelegramSenders(isName)}
	for _, rule := range DefaultRules() {
		passes = append(passes, Redaction(rule))
	}
	return append(passes, WhatsAppSenders(isName), NameSweep(wholeWordSweep))
}

// TelegramSenders aliases the text of every from_name div that looks like a name.
func TelegramSenders(isName NamePredicate) Pass {
	return NewPass(PassTelegramSenders, func(text string, reg *Registry) string {
		return replaceGroup(telegramSenderPattern, text, 1, func(sender string) string {
			return aliasIfName(sender, isName, reg)
		})
	})
}

// WhatsAppSenders aliases the sender segment of "DD.MM.YYYY, HH:MM - Sender: text"
// lines. Date, time and message body are kept verbatim.
func WhatsAppSenders(isName NamePredicate) Pass {
	return NewPass(PassWhatsAppSenders, func(text string, reg *Registry) string {
		return replaceGroup(whatsappLinePattern, text, 3, func(sender string) string {
			return aliasIfName(sender, isName, reg)
		})
	})
}

// Redaction replaces every match of rule with its replacement token.
func Redaction(rule DetectionRule) Pass {
	return NewPass(rule.Name+"_redaction", func(text string, reg *Registry) string {
		if !rule.Enabled {
			return text
		}
		n := 0
		out := rule.Pattern.ReplaceAllStringFunc(text, func(string) string {
			n++
			return rule.Replacement
		})
		reg.AddRedactions(rule.Name, rule.Replacement, n)
		return out
	})
}

// NameSweep replaces every remaining occurrence of each registered name,
// in registration order. With wholeWord set, occurrences glued to a letter,
// digit or underscore are left alone.
func NameSweep(wholeWord bool) Pass {
	return NewPass(PassNameSweep, func(text string, reg *Registry) string {
		for _, e := range reg.Entries() {
			if e.Original == "" {
				continue
			}
			if wholeWord {
				text = replaceWholeWord(text, e.Original, e.Alias)
			} else {
				text = strings.ReplaceAll(text, e.Original, e.Alias)
			}
		}
		return text
	})
}

// aliasIfName swaps the trimmed core of segment for its alias, keeping
// the surrounding whitespace.
func aliasIfName(segment string, isName NamePredicate, reg *Registry) string {
	core := trimName(segment)
	if core == "" || !isName(core) {
		return segment
	}
	lead := len(segment) - len(strings.TrimLeftFunc(segment, isTrimSpace))
	return segment[:lead] + reg.Register(core) + segment[lead+len(core):]
}

// replaceGroup rewrites capture group `group` of every match through fn,
// copying everything else unchanged.
func replaceGroup(re *regexp.Regexp, text string, group int, fn func(string) string) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		start, end := m[2*group], m[2*group+1]
		if start < 0 {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(fn(text[start:end]))
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func replaceWholeWord(text, word, repl string) string {
	var b strings.Builder
	last, pos := 0, 0
	for {
		i := strings.Index(text[pos:], word)
		if i < 0 {
			break
		}
		start := pos + i
		end := start + len(word)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(before) && !isWordRune(after) {
			b.WriteString(text[last:start])
			b.WriteString(repl)
			last = end
		}
		pos = end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

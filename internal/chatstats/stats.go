package chatstats

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var whatsappLine = regexp.MustCompile(`(?m)^(\d{2}\.\d{2}\.\d{4}),\s(\d{2}:\d{2})\s-\s([^:\n]+):\s(.*)$`)

// Telegram writes message times as "02.01.2006 15:04:05 UTC+03:00".
var telegramLayouts = []string{
	"02.01.2006 15:04:05 UTC-07:00",
	"02.01.2006 15:04:05",
}

type participant struct {
	id       string
	messages int
	chars    int
}

type collector struct {
	order       []*participant
	byID        map[string]*participant
	total       int
	first, last time.Time
}

func newCollector() *collector {
	return &collector{byID: make(map[string]*participant)}
}

func (c *collector) add(sender, body string, at time.Time) {
	p, ok := c.byID[sender]
	if !ok {
		p = &participant{id: sender}
		c.byID[sender] = p
		c.order = append(c.order, p)
	}
	p.messages++
	p.chars += utf8.RuneCountInString(strings.TrimSpace(body))
	c.total++

	if at.IsZero() {
		return
	}
	if c.first.IsZero() || at.Before(c.first) {
		c.first = at
	}
	if c.last.IsZero() || at.After(c.last) {
		c.last = at
	}
}

func (c *collector) stats() ChatStats {
	s := ChatStats{
		TotalMessages: c.total,
		Participants:  make([]ParticipantStats, 0, len(c.order)),
	}
	for _, p := range c.order {
		avg := float64(p.chars) / float64(p.messages)
		s.Participants = append(s.Participants, ParticipantStats{
			ID:               p.id,
			MessagesCount:    p.messages,
			AvgMessageLength: math.Round(avg*10) / 10,
		})
	}
	if !c.first.IsZero() {
		s.FirstMessageAt = isoString(c.first)
		s.LastMessageAt = isoString(c.last)
	}
	return s
}

func isoString(t time.Time) *string {
	v := t.UTC().Format(time.RFC3339)
	return &v
}

// Compute counts messages per sender in a (normally anonymized) export.
// Telegram HTML and WhatsApp text exports are both recognized, also when
// several files were combined into one text.
func Compute(text string) ChatStats {
	c := newCollector()
	if strings.Contains(text, `class="message`) {
		collectTelegram(text, c)
	}
	collectWhatsApp(text, c)
	return c.stats()
}

func collectWhatsApp(text string, c *collector) {
	for _, m := range whatsappLine.FindAllStringSubmatch(text, -1) {
		sender := strings.TrimSpace(m[3])
		if sender == "" {
			continue
		}
		at, _ := time.ParseInLocation("02.01.2006 15:04", m[1]+" "+m[2], time.UTC)
		c.add(sender, m[4], at)
	}
}

type divRole int

const (
	roleOther divRole = iota
	roleMessage
	roleFromName
	roleText
	roleDate
)

type tgMessage struct {
	joined bool
	name   strings.Builder
	body   strings.Builder
	at     time.Time
}

func collectTelegram(text string, c *collector) {
	z := html.NewTokenizer(strings.NewReader(text))

	var (
		stack      []divRole
		cur        *tgMessage
		lastSender string
		inName     int
		inText     int
	)

	finish := func() {
		if cur == nil {
			return
		}
		sender := strings.TrimSpace(cur.name.String())
		if sender == "" && cur.joined {
			sender = lastSender
		}
		if sender != "" {
			c.add(sender, cur.body.String(), cur.at)
			lastSender = sender
		}
		cur = nil
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			finish()
			return

		case html.StartTagToken:
			tok := z.Token()
			if tok.Data != "div" {
				continue
			}
			classes, title := divAttrs(tok)
			role := classify(classes)
			switch role {
			case roleMessage:
				finish()
				cur = &tgMessage{joined: hasClass(classes, "joined")}
			case roleFromName:
				inName++
			case roleText:
				inText++
			case roleDate:
				if cur != nil {
					cur.at = parseTelegramTime(title)
				}
			}
			stack = append(stack, role)

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) != "div" || len(stack) == 0 {
				continue
			}
			role := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch role {
			case roleMessage:
				finish()
			case roleFromName:
				inName--
			case roleText:
				inText--
			}

		case html.TextToken:
			if cur == nil {
				continue
			}
			if inName > 0 {
				cur.name.Write(z.Text())
			} else if inText > 0 {
				cur.body.Write(z.Text())
			}
		}
	}
}

func divAttrs(tok html.Token) (classes []string, title string) {
	for _, a := range tok.Attr {
		switch a.Key {
		case "class":
			classes = strings.Fields(a.Val)
		case "title":
			title = a.Val
		}
	}
	return classes, title
}

func classify(classes []string) divRole {
	switch {
	case hasClass(classes, "message") && hasClass(classes, "default"):
		return roleMessage
	case hasClass(classes, "from_name"):
		return roleFromName
	case hasClass(classes, "text"):
		return roleText
	case hasClass(classes, "date") && hasClass(classes, "details"):
		return roleDate
	}
	return roleOther
}

func hasClass(classes []string, want string) bool {
	for _, c := range classes {
		if c == want {
			return true
		}
	}
	return false
}

func parseTelegramTime(title string) time.Time {
	title = strings.TrimSpace(title)
	for _, layout := range telegramLayouts {
		if t, err := time.ParseInLocation(layout, title, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

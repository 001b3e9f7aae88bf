package chatstats

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var sizeUnits = []string{"Б", "КБ", "МБ", "ГБ"}

// FormatBytes renders n with Russian units, base 1024, one decimal place:
// "0 Б", "500.0 Б", "1.5 КБ".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Б"
	}
	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, sizeUnits[unit])
}

// FormatDateLabel renders an ISO timestamp as DD.MM.YYYY, or "—" when it
// is empty or unparseable.
func FormatDateLabel(iso string) string {
	t, ok := parseTime(iso)
	if !ok {
		return "—"
	}
	return t.Format("02.01.2006")
}

// NewMeta builds the local equivalent of a chat_meta response.
func NewMeta(text string, recommended int64) ChatMeta {
	return ChatMeta{
		Stats:            Compute(text),
		UploadBytes:      int64(len(text)),
		RecommendedBytes: recommended,
	}
}

// EstimateRangeBytes estimates how many bytes of the upload fall between
// from and to, assuming messages are spread evenly over the chat span.
// Empty or invalid bounds fall back to the span edges and bounds outside
// the span are clamped. It reports false when no estimate is possible.
func EstimateRangeBytes(meta ChatMeta, from, to string) (int64, bool) {
	if meta.Stats.FirstMessageAt == nil || meta.Stats.LastMessageAt == nil {
		return 0, false
	}
	start, ok1 := parseTime(*meta.Stats.FirstMessageAt)
	end, ok2 := parseTime(*meta.Stats.LastMessageAt)
	if !ok1 || !ok2 || !end.After(start) {
		return 0, false
	}

	lo, ok := parseTime(from)
	if !ok || lo.Before(start) {
		lo = start
	}
	hi, ok := parseTime(to)
	if !ok || hi.After(end) {
		hi = end
	}

	span := end.Sub(start)
	rng := hi.Sub(lo)
	if rng <= 0 {
		return 0, false
	}

	fraction := math.Min(1, float64(rng)/float64(span))
	return int64(math.Round(float64(meta.UploadBytes) * fraction)), true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

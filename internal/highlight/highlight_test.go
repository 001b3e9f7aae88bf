package highlight

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forced(on bool) *Highlighter { return New(&on) }

func TestHighlightAnon(t *testing.T) {
	h := forced(true)
	mapping := map[string]string{"Maria": "USER_1", "Boris": "USER_2"}

	out := h.Highlight("USER_1: hi USER_2", mapping, ModeAnon)

	assert.Equal(t, h.palette[0].Sprint("USER_1")+": hi "+h.palette[1].Sprint("USER_2"), out)
	assert.Contains(t, out, "\x1b[")
}

func TestHighlightRaw(t *testing.T) {
	h := forced(true)
	mapping := map[string]string{"Maria": "USER_1", "Maria Ivanova": "USER_2"}

	out := h.Highlight("Maria Ivanova met Maria", mapping, ModeRaw)

	assert.Equal(t, h.palette[1].Sprint("Maria Ivanova")+" met "+h.palette[0].Sprint("Maria"), out)
}

func TestHighlightPaletteOverflow(t *testing.T) {
	h := forced(true)
	mapping := map[string]string{}
	for i := 1; i <= 10; i++ {
		mapping[fmt.Sprintf("Name%c", 'A'+i)] = fmt.Sprintf("USER_%d", i)
	}

	out := h.Highlight("USER_10 and USER_1", mapping, ModeAnon)

	assert.True(t, strings.HasPrefix(out, h.fallback.Sprint("USER_10")), out)
	assert.True(t, strings.HasSuffix(out, h.palette[0].Sprint("USER_1")), out)
}

func TestHighlightDisabled(t *testing.T) {
	h := forced(false)
	mapping := map[string]string{"Maria": "USER_1"}

	assert.Equal(t, "USER_1: hi", h.Highlight("USER_1: hi", mapping, ModeAnon))
	assert.Equal(t, "USER_1  Maria\n", h.Legend(mapping))
}

func TestHighlightEmptyMapping(t *testing.T) {
	assert.Equal(t, "plain", forced(true).Highlight("plain", nil, ModeAnon))
}

func TestLegendOrder(t *testing.T) {
	h := forced(false)
	mapping := map[string]string{"C": "USER_10", "A": "USER_1", "B": "USER_2"}

	assert.Equal(t, "USER_1  A\nUSER_2  B\nUSER_10  C\n", h.Legend(mapping))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("RAW")
	require.NoError(t, err)
	assert.Equal(t, ModeRaw, m)

	_, err = ParseMode("both")
	assert.Error(t, err)
}

package ingest

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
)

const fileMarker = "\n\n<!-- FILE: %s -->\n\n"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode turns raw export bytes into text. UTF-8 is used as-is (BOM
// stripped); anything else is read as Windows-1251, the usual encoding of
// legacy Cyrillic exports.
func Decode(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}

// SortByName orders files by name with natural numeric, case-insensitive
// collation, so messages2.html sorts before messages10.html.
func SortByName(files []File) {
	c := collate.New(language.Und, collate.Loose, collate.Numeric)
	sort.SliceStable(files, func(i, j int) bool {
		return c.CompareString(files[i].Name, files[j].Name) < 0
	})
}

// Combine joins decoded files, each preceded by an HTML comment naming it.
func Combine(files []File) string {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, fileMarker, f.Name)
		b.WriteString(Decode(f.Data))
	}
	return b.String()
}

// Preview returns the first n characters of text.
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(text) <= n {
		return text
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}

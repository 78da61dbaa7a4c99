package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mixedCMap = `begincmap
2 begincodespacerange
<00> <7F>
<8000> <FFFF>
endcodespacerange
1 beginbfchar
<41> <0041>
endbfchar
2 beginbfrange
<8001> <8003> <0061>
<9000> <9001> [<0066006C> /eacute]
endbfrange
endcmap`

func TestParseCMap(t *testing.T) {
	cm, err := parseCMap([]byte(mixedCMap), 16)
	require.NoError(t, err)
	require.Len(t, cm.spaces, 2)

	keys := cm.split(String("A\x80\x02\x90\x00\x90\x01"), 2)
	require.Equal(t, []cmapKey{{1, 0x41}, {2, 0x8002}, {2, 0x9000}, {2, 0x9001}}, keys)

	var got []string
	for _, k := range keys {
		text, ok := cm.lookup(k.code, k.n)
		assert.True(t, ok, "code %x", k.code)
		got = append(got, text)
	}
	assert.Equal(t, []string{"A", "b", "fl", "é"}, got)

	_, ok := cm.lookup(0x42, 1)
	assert.False(t, ok)
}

func TestCMapSurrogatePair(t *testing.T) {
	cm, err := parseCMap([]byte("1 beginbfchar <0001> <D83DDE00> endbfchar"), 16)
	require.NoError(t, err)
	text, ok := cm.lookup(1, 2)
	require.True(t, ok)
	assert.Equal(t, "😀", text)
}

func TestGlyphText(t *testing.T) {
	tests := map[string]string{
		"A":           "A",
		"space":       " ",
		"quoteright":  "’",
		"fi":          "ﬁ",
		"uni00E9":     "é",
		"uni00660069": "fi",
		"u1F600":      "😀",
		"Aacute":      "Á",
		"ccedilla":    "ç",
		"a.sc":        "a",
		"f_f":         "ff",
		"g123":        "",
		"":            "",
	}
	for name, want := range tests {
		assert.Equal(t, want, glyphText(name), name)
	}
}

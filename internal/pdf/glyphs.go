package pdf

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// glyphNames covers the Adobe glyph names that show up in /Differences
// arrays of ordinary text fonts. Accented letters are composed in
// glyphText instead of being listed here.
var glyphNames = map[string]string{
	"space": " ", "exclam": "!", "quotedbl": "\"", "numbersign": "#",
	"dollar": "$", "percent": "%", "ampersand": "&", "quotesingle": "'",
	"quoteright": "’", "quoteleft": "‘", "parenleft": "(", "parenright": ")",
	"asterisk": "*", "plus": "+", "comma": ",", "hyphen": "-", "period": ".",
	"slash": "/", "zero": "0", "one": "1", "two": "2", "three": "3",
	"four": "4", "five": "5", "six": "6", "seven": "7", "eight": "8",
	"nine": "9", "colon": ":", "semicolon": ";", "less": "<", "equal": "=",
	"greater": ">", "question": "?", "at": "@", "bracketleft": "[",
	"backslash": "\\", "bracketright": "]", "asciicircum": "^",
	"underscore": "_", "grave": "`", "braceleft": "{", "bar": "|",
	"braceright": "}", "asciitilde": "~",

	"bullet": "•", "endash": "–", "emdash": "—", "ellipsis": "…",
	"dagger": "†", "daggerdbl": "‡", "quotedblleft": "“", "quotedblright": "”",
	"quotesinglbase": "‚", "quotedblbase": "„", "guilsinglleft": "‹",
	"guilsinglright": "›", "guillemotleft": "«", "guillemotright": "»",
	"exclamdown": "¡", "questiondown": "¿", "cent": "¢", "sterling": "£",
	"yen": "¥", "currency": "¤", "Euro": "€", "section": "§",
	"paragraph": "¶", "copyright": "©", "registered": "®",
	"trademark": "™", "degree": "°", "plusminus": "±", "multiply": "×",
	"divide": "÷", "mu": "µ", "periodcentered": "·", "florin": "ƒ",
	"perthousand": "‰", "minus": "−", "fraction": "⁄", "logicalnot": "¬",
	"brokenbar": "¦", "ordfeminine": "ª", "ordmasculine": "º",
	"onequarter": "¼", "onehalf": "½", "threequarters": "¾",
	"onesuperior": "¹", "twosuperior": "²", "threesuperior": "³",
	"nbspace": "\u00a0", "nonbreakingspace": "\u00a0", "sfthyphen": "\u00ad",

	"fi": "ﬁ", "fl": "ﬂ", "ff": "ﬀ", "ffi": "ﬃ", "ffl": "ﬄ",
	"dotlessi": "ı", "germandbls": "ß", "ae": "æ", "AE": "Æ", "oe": "œ",
	"OE": "Œ", "oslash": "ø", "Oslash": "Ø", "lslash": "ł", "Lslash": "Ł",
	"eth": "ð", "Eth": "Ð", "thorn": "þ", "Thorn": "Þ",

	"acute": "´", "dieresis": "¨", "cedilla": "¸", "macron": "¯",
	"circumflex": "ˆ", "tilde": "˜", "caron": "ˇ", "breve": "˘",
	"dotaccent": "˙", "ring": "˚", "hungarumlaut": "˝", "ogonek": "˛",
}

var accentMarks = map[string]rune{
	"acute":        '\u0301',
	"grave":        '\u0300',
	"circumflex":   '\u0302',
	"tilde":        '\u0303',
	"macron":       '\u0304',
	"breve":        '\u0306',
	"dotaccent":    '\u0307',
	"dieresis":     '\u0308',
	"ring":         '\u030A',
	"hungarumlaut": '\u030B',
	"caron":        '\u030C',
	"cedilla":      '\u0327',
	"ogonek":       '\u0328',
}

// glyphText maps a glyph name to its text, or "" when unknown.
func glyphText(name string) string {
	if name == "" {
		return ""
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if strings.Contains(name, "_") {
		var b strings.Builder
		for _, part := range strings.Split(name, "_") {
			b.WriteString(glyphText(part))
		}
		return b.String()
	}
	if t, ok := glyphNames[name]; ok {
		return t
	}
	if utf8.RuneCountInString(name) == 1 {
		return name
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 && (len(name)-3)%4 == 0 {
		var b strings.Builder
		for i := 3; i < len(name); i += 4 {
			v, err := strconv.ParseUint(name[i:i+4], 16, 32)
			if err != nil {
				return ""
			}
			b.WriteRune(rune(v))
		}
		return b.String()
	}
	if name[0] == 'u' && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil && utf8.ValidRune(rune(v)) {
			return string(rune(v))
		}
	}
	if mark, ok := accentMarks[name[1:]]; ok && len(name) > 1 {
		composed := norm.NFC.String(name[:1] + string(mark))
		if utf8.RuneCountInString(composed) == 1 {
			return composed
		}
	}
	return ""
}

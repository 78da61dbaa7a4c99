package pdf

// Single-byte base encodings for simple fonts, as code -> text.
var (
	winAnsiEncoding  = buildWinAnsi()
	macRomanEncoding = buildMacRoman()
	standardEncoding = buildStandard()
)

func buildASCII() (enc [256]string) {
	for c := 0x20; c < 0x7f; c++ {
		enc[c] = string(rune(c))
	}
	return enc
}

func fill(enc *[256]string, start int, runes string) {
	i := start
	for _, r := range runes {
		if r != '\x00' {
			enc[i] = string(r)
		}
		i++
	}
}

func buildWinAnsi() [256]string {
	enc := buildASCII()
	fill(&enc, 0x80, "€\x00‚ƒ„…†‡ˆ‰Š‹Œ\x00Ž\x00\x00‘’“”•–—˜™š›œ\x00žŸ")
	for c := 0xa0; c <= 0xff; c++ {
		enc[c] = string(rune(c))
	}
	return enc
}

func buildMacRoman() [256]string {
	enc := buildASCII()
	fill(&enc, 0x80, "ÄÅÇÉÑÖÜáàâäãåçéè")
	fill(&enc, 0x90, "êëíìîïñóòôöõúùûü")
	fill(&enc, 0xa0, "†°¢£§•¶ß®©™´¨≠ÆØ")
	fill(&enc, 0xb0, "∞±≤≥¥µ∂∑∏π∫ªºΩæø")
	fill(&enc, 0xc0, "¿¡¬√ƒ≈∆«»…\u00a0ÀÃÕŒœ")
	fill(&enc, 0xd0, "–—“”‘’÷◊ÿŸ⁄¤‹›ﬁﬂ")
	fill(&enc, 0xe0, "‡·‚„‰ÂÊÁËÈÍÎÏÌÓÔ")
	fill(&enc, 0xf0, "ÒÚÛÙıˆ˜¯˘˙˚¸˝˛ˇ")
	return enc
}

func buildStandard() [256]string {
	enc := buildASCII()
	enc[0x27] = "’"
	enc[0x60] = "‘"
	fill(&enc, 0xa1, "¡¢£⁄¥ƒ§¤'“«‹›ﬁﬂ")
	fill(&enc, 0xb1, "–†‡·\x00¶•‚„”»…‰\x00¿")
	fill(&enc, 0xc1, "`´ˆ˜¯˘˙¨\x00˚¸\x00˝˛ˇ—")
	enc[0xe1] = "Æ"
	enc[0xe3] = "ª"
	fill(&enc, 0xe8, "ŁØŒº")
	enc[0xf1] = "æ"
	enc[0xf5] = "ı"
	fill(&enc, 0xf8, "łøœß")
	return enc
}

func namedEncoding(n Name) (*[256]string, bool) {
	switch n {
	case "WinAnsiEncoding":
		return &winAnsiEncoding, true
	case "MacRomanEncoding", "MacExpertEncoding":
		return &macRomanEncoding, true
	case "StandardEncoding":
		return &standardEncoding, true
	case "PDFDocEncoding":
		return &winAnsiEncoding, true
	}
	return nil, false
}

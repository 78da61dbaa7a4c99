package pdf

import (
	"bytes"
	"encoding/ascii85"
	"errors"
	"io"

	"github.com/hhrutter/lzw"
	"github.com/klauspost/compress/zlib"
)

// decode returns the decoded payload of st, charging it to the document
// budget.
func (d *Document) decode(st *Stream) ([]byte, error) {
	filters, params, err := d.streamFilters(st.Dict)
	if err != nil {
		return nil, err
	}
	limit := d.budget.streamAllowance()
	data := st.Data
	for i, f := range filters {
		if data, err = applyFilter(f, params[i], data, limit); err != nil {
			return nil, err
		}
	}
	if int64(len(data)) > limit {
		return nil, limitf("stream exceeds %d decoded bytes", limit)
	}
	d.budget.consume(len(data))
	return data, nil
}

func (d *Document) streamFilters(dict Dict) ([]Name, []Dict, error) {
	fo, err := d.get(dict, "Filter")
	if err != nil {
		return nil, nil, err
	}
	po, err := d.get(dict, "DecodeParms")
	if err != nil {
		return nil, nil, err
	}

	var filters []Name
	switch f := fo.(type) {
	case nil:
		return nil, nil, nil
	case Name:
		filters = []Name{f}
	case Array:
		for _, v := range f {
			v, err := d.resolve(v)
			if err != nil {
				return nil, nil, err
			}
			n, ok := v.(Name)
			if !ok {
				return nil, nil, malformedf("stream /Filter entry is not a name")
			}
			filters = append(filters, n)
		}
	default:
		return nil, nil, malformedf("stream /Filter is not a name or array")
	}

	params := make([]Dict, len(filters))
	switch p := po.(type) {
	case Dict:
		if len(params) > 0 {
			params[0] = p
		}
	case Array:
		for i := 0; i < len(p) && i < len(params); i++ {
			v, err := d.resolve(p[i])
			if err != nil {
				return nil, nil, err
			}
			params[i], _ = v.(Dict)
		}
	}
	for i, p := range params {
		if p == nil {
			continue
		}
		resolved := make(Dict, len(p))
		for k, v := range p {
			if resolved[k], err = d.resolve(v); err != nil {
				return nil, nil, err
			}
		}
		params[i] = resolved
	}
	return filters, params, nil
}

func applyFilter(name Name, parms Dict, data []byte, limit int64) ([]byte, error) {
	switch name {
	case "FlateDecode", "Fl":
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, malformedf("flate stream: %v", err)
		}
		defer r.Close()
		out, err := readLimited(r, limit)
		if err != nil {
			return nil, err
		}
		return applyPredictor(out, parms)
	case "LZWDecode", "LZW":
		early := true
		if v, ok := parms["EarlyChange"].(int64); ok && v == 0 {
			early = false
		}
		r := lzw.NewReader(bytes.NewReader(data), early)
		defer r.Close()
		out, err := readLimited(r, limit)
		if err != nil {
			return nil, err
		}
		return applyPredictor(out, parms)
	case "ASCIIHexDecode", "AHx":
		return asciiHexDecode(data, limit)
	case "ASCII85Decode", "A85":
		return ascii85Decode(data, limit)
	case "RunLengthDecode", "RL":
		return runLengthDecode(data, limit)
	case "Crypt":
		if n, _ := parms["Name"].(Name); n == "" || n == "Identity" {
			return data, nil
		}
		return nil, errorf(ErrEncrypted, "stream uses crypt filter")
	}
	return nil, unsupportedf("stream filter /%s", name)
}

// readLimited reads r up to limit bytes. Truncated compressed data keeps what
// was decoded so far; anything beyond limit is a limit failure.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if int64(len(out)) > limit {
		return nil, limitf("stream exceeds %d decoded bytes", limit)
	}
	if err != nil {
		if len(out) > 0 && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, zlib.ErrChecksum)) {
			return out, nil
		}
		return nil, malformedf("compressed stream: %v", err)
	}
	return out, nil
}

func asciiHexDecode(data []byte, limit int64) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)
	var hi byte
	half := false
	for _, c := range data {
		if c == '>' {
			break
		}
		if isWhite(c) {
			continue
		}
		v, ok := unhex(c)
		if !ok {
			return nil, malformedf("bad character in ASCIIHex stream")
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	if int64(len(out)) > limit {
		return nil, limitf("stream exceeds %d decoded bytes", limit)
	}
	return out, nil
}

func ascii85Decode(data []byte, limit int64) ([]byte, error) {
	clean := make([]byte, 0, len(data))
	for _, c := range data {
		if !isWhite(c) {
			clean = append(clean, c)
		}
	}
	clean = bytes.TrimPrefix(clean, []byte("<~"))
	if i := bytes.Index(clean, []byte("~>")); i >= 0 {
		clean = clean[:i]
	}
	return readLimited(ascii85.NewDecoder(bytes.NewReader(clean)), limit)
}

func runLengthDecode(data []byte, limit int64) ([]byte, error) {
	var out []byte
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			end := i + n + 1
			if end > len(data) {
				end = len(data)
			}
			out = append(out, data[i:end]...)
			i = end
		default:
			if i >= len(data) {
				return out, nil
			}
			out = append(out, bytes.Repeat(data[i:i+1], 257-n)...)
			i++
		}
		if int64(len(out)) > limit {
			return nil, limitf("stream exceeds %d decoded bytes", limit)
		}
	}
	return out, nil
}

func intParam(p Dict, key Name, def int) int {
	if v, ok := p[key].(int64); ok {
		return int(v)
	}
	return def
}

func applyPredictor(data []byte, p Dict) ([]byte, error) {
	pred := intParam(p, "Predictor", 1)
	if pred <= 1 {
		return data, nil
	}
	colors := intParam(p, "Colors", 1)
	bpc := intParam(p, "BitsPerComponent", 8)
	columns := intParam(p, "Columns", 1)
	if colors < 1 || colors > 32 || columns < 1 || columns > 1<<20 {
		return nil, malformedf("bad predictor parameters")
	}
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, malformedf("bad predictor bits per component %d", bpc)
	}
	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8

	if pred == 2 {
		if bpc != 8 {
			return nil, unsupportedf("TIFF predictor with %d bits per component", bpc)
		}
		out := append([]byte(nil), data...)
		for row := 0; row < len(out); row += rowLen {
			end := row + rowLen
			if end > len(out) {
				end = len(out)
			}
			for i := row + bpp; i < end; i++ {
				out[i] += out[i-bpp]
			}
		}
		return out, nil
	}
	if pred < 10 {
		return nil, unsupportedf("predictor %d", pred)
	}

	// Rows are never longer than the data that carries them.
	bufLen := rowLen
	if bufLen > len(data) {
		bufLen = len(data)
	}
	out := make([]byte, 0, len(data))
	prev := make([]byte, bufLen)
	cur := make([]byte, bufLen)
	for off := 0; off < len(data); off += rowLen + 1 {
		ft := data[off]
		end := off + 1 + rowLen
		if end > len(data) {
			end = len(data)
		}
		n := copy(cur, data[off+1:end])
		row := cur[:n]
		for i := range row {
			var left, up, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up = prev[i]
			switch ft {
			case 0:
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, malformedf("bad PNG predictor row filter %d", ft)
			}
		}
		out = append(out, row...)
		copy(prev, row)
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

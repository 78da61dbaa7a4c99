package pdf

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/hhrutter/lzw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFilter(t *testing.T) {
	var lzwBuf bytes.Buffer
	w := lzw.NewWriter(&lzwBuf, true)
	_, err := w.Write([]byte("Hello Hello Hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	tests := []struct {
		name   string
		filter Name
		parms  Dict
		in     []byte
		want   string
	}{
		{"hex", "ASCIIHexDecode", nil, []byte("48 65 6C 6c 6F>"), "Hello"},
		{"hex odd digit", "AHx", nil, []byte("414>"), "A@"},
		{"ascii85", "ASCII85Decode", nil, []byte("<~87cURDZ~>"), "Hello"},
		{"run length", "RunLengthDecode", nil, []byte{1, 'H', 'i', 254, '!', 128}, "Hi!!!"},
		{"lzw", "LZWDecode", nil, lzwBuf.Bytes(), "Hello Hello Hello"},
		{"identity crypt", "Crypt", Dict{"Name": Name("Identity")}, []byte("plain"), "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyFilter(tt.filter, tt.parms, tt.in, 1<<20)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestApplyFilterErrors(t *testing.T) {
	_, err := applyFilter("DCTDecode", nil, []byte{0xff, 0xd8}, 1<<20)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = applyFilter("Crypt", Dict{"Name": Name("StdCF")}, []byte("x"), 1<<20)
	assert.ErrorIs(t, err, ErrEncrypted)

	_, err = applyFilter("FlateDecode", nil, []byte("not zlib"), 1<<20)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = applyFilter("RunLengthDecode", nil, []byte{129, 'x', 129, 'y'}, 100)
	assert.ErrorIs(t, err, ErrLimit)
}

func TestPNGPredictor(t *testing.T) {
	// Two rows of three bytes: "Sub" then "Up".
	data := []byte{
		1, 10, 5, 5,
		2, 1, 1, 1,
	}
	got, err := applyPredictor(data, Dict{"Predictor": int64(12), "Columns": int64(3)})
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 15, 20, 11, 16, 21}, got)
}

func TestPNGPredictorHugeColumnsSmallData(t *testing.T) {
	params := Dict{
		"Predictor":        int64(12),
		"Colors":           int64(32),
		"BitsPerComponent": int64(16),
		"Columns":          int64(1 << 20),
	}
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	got, err := applyPredictor(data, params)
	runtime.ReadMemStats(&after)

	require.NoError(t, err)
	assert.Equal(t, data[1:], got)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20), "row buffers must be sized by the data")
}

func TestTIFFPredictor(t *testing.T) {
	got, err := applyPredictor([]byte{1, 1, 1, 5, 1, 1}, Dict{"Predictor": int64(2), "Columns": int64(3)})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 5, 6, 7}, got)
}

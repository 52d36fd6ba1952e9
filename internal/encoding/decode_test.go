package encoding_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/MrJamesThe3rd/consignado/internal/encoding"
)

const header = "Contrato;Valor;Data Pagamento;ID Transação\nCT-1;1.000,00;10/03/2024;Pagamento consignação\n"

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()

	got, err := io.ReadAll(r)
	require.NoError(t, err)

	return string(got)
}

func TestDetect_UTF8Passthrough(t *testing.T) {
	r, charset, err := encoding.Detect(strings.NewReader(header))
	require.NoError(t, err)

	assert.Equal(t, encoding.CharsetUTF8, charset)
	assert.Equal(t, header, readAll(t, r))
}

func TestDetect_UTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, header...)

	r, charset, err := encoding.Detect(bytes.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, encoding.CharsetUTF8, charset)
	assert.Equal(t, header, readAll(t, r))
}

func TestDetect_UTF16LE(t *testing.T) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(header))
	require.NoError(t, err)

	r, charset, err := encoding.Detect(bytes.NewReader(encoded))
	require.NoError(t, err)

	assert.Equal(t, encoding.CharsetUTF16LE, charset)
	assert.Equal(t, header, readAll(t, r))
}

func TestDetect_SingleByteCharsets(t *testing.T) {
	for _, cm := range []*charmap.Charmap{charmap.Windows1252, charmap.ISO8859_1} {
		encoded, err := cm.NewEncoder().Bytes([]byte(header))
		require.NoError(t, err)

		r, charset, err := encoding.Detect(bytes.NewReader(encoded))
		require.NoError(t, err)

		assert.NotEqual(t, encoding.CharsetUTF8, charset)
		assert.Equal(t, header, readAll(t, r))
	}
}

func TestDetect_LongUTF8File(t *testing.T) {
	// Pushes an accented rune across the sniff window boundary.
	input := strings.Repeat("a", 4095) + "ção\n"

	r, charset, err := encoding.Detect(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, encoding.CharsetUTF8, charset)
	assert.Equal(t, input, readAll(t, r))
}

func TestNewUTF8Reader_Empty(t *testing.T) {
	r, err := encoding.NewUTF8Reader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, readAll(t, r))
}

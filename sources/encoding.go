package sources

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeToUTF8 converts raw file data to UTF-8. A BOM decides UTF-8 or
// UTF-16; BOM-less data that is valid UTF-8 passes through, anything else
// is treated as Latin-1. Exported data from spreadsheet tools arrives in
// all of these shapes.
func decodeToUTF8(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	if bytes.HasPrefix(data, bomUTF8) {
		return data[3:], nil
	}
	if bytes.HasPrefix(data, bomUTF16LE) {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data[2:])
		if err != nil {
			return nil, fmt.Errorf("decoding the data as UTF-16 LE failed: %s", err)
		}
		return decoded, nil
	}
	if bytes.HasPrefix(data, bomUTF16BE) {
		decoded, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data[2:])
		if err != nil {
			return nil, fmt.Errorf("decoding the data as UTF-16 BE failed: %s", err)
		}
		return decoded, nil
	}
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decoding the data as Latin-1 failed: %s", err)
	}
	return decoded, nil
}

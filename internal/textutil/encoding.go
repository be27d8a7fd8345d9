// Package textutil normalizes fetched CSV text to UTF-8.
package textutil

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// UTF8 is the charset name reported for text that needed no conversion.
const UTF8 = "UTF-8"

var (
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
	bomUTF16LE = []byte{0xff, 0xfe}
	bomUTF16BE = []byte{0xfe, 0xff}
)

// NewUTF8Reader reads r fully and returns its text as UTF-8 with any byte
// order mark removed, along with the charset it was decoded from.
func NewUTF8Reader(r io.Reader) (io.Reader, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read text: %w", err)
	}
	out, charset := DecodeBytes(data)
	return bytes.NewReader(out), charset, nil
}

// DecodeBytes converts data to UTF-8. A UTF-16 byte order mark selects
// UTF-16; otherwise valid UTF-8 passes through, and anything else goes
// through charset detection with single-byte Western fallbacks.
func DecodeBytes(data []byte) ([]byte, string) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return SanitizeUTF8(data[len(bomUTF8):]), UTF8
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil {
			return out, "UTF-16"
		}
	}
	if utf8.Valid(data) {
		return data, UTF8
	}

	minConfidence := 30
	if len(data) > 50 {
		minConfidence = 50
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err == nil && result.Confidence >= minConfidence {
		if enc := EncodingByName(result.Charset); enc != nil {
			if out, err := enc.NewDecoder().Bytes(data); err == nil && utf8.Valid(out) {
				return out, result.Charset
			}
		}
	}

	// Border data is mostly Western European place names.
	fallbacks := []struct {
		name string
		enc  encoding.Encoding
	}{
		{"windows-1252", charmap.Windows1252},
		{"ISO-8859-1", charmap.ISO8859_1},
		{"ISO-8859-15", charmap.ISO8859_15},
	}
	for _, fb := range fallbacks {
		if out, err := fb.enc.NewDecoder().Bytes(data); err == nil && utf8.Valid(out) {
			return out, fb.name
		}
	}
	return SanitizeUTF8(data), UTF8
}

// EnsureUTF8 returns s converted to valid UTF-8.
func EnsureUTF8(s string) string {
	out, _ := DecodeBytes([]byte(s))
	return string(out)
}

// SanitizeUTF8 replaces invalid UTF-8 bytes with the replacement character.
func SanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	var sb strings.Builder
	sb.Grow(len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune('\ufffd')
			i++
			continue
		}
		sb.WriteRune(r)
		i += size
	}
	return []byte(sb.String())
}

// EncodingByName returns an encoding for an IANA charset name, or nil.
func EncodingByName(name string) encoding.Encoding {
	switch strings.ToLower(name) {
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15
	case "iso-8859-2", "latin2":
		return charmap.ISO8859_2
	case "iso-8859-5":
		return charmap.ISO8859_5
	case "iso-8859-7":
		return charmap.ISO8859_7
	case "iso-8859-9", "latin5":
		return charmap.ISO8859_9
	case "windows-1250":
		return charmap.Windows1250
	case "windows-1251":
		return charmap.Windows1251
	case "koi8-r":
		return charmap.KOI8R
	case "koi8-u":
		return charmap.KOI8U
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	default:
		return nil
	}
}

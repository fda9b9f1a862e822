// Package codec converts between the bot's native UTF-8 strings and the wire
// byte encoding used by the IRC network. It is applied at the single read and
// write points of the wire connection, so every inbound field and every
// outbound line crosses it exactly once.
package codec

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Codec is a stateless encoder/decoder for a single wire charset.
// The zero value is a UTF-8 codec.
type Codec struct {
	enc encoding.Encoding
}

// New returns a codec for the named charset. Supported: utf-8 (default),
// latin-1/iso-8859-1, windows-1252.
func New(charset string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return Codec{}, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return Codec{enc: charmap.ISO8859_1}, nil
	case "windows-1252", "cp1252":
		return Codec{enc: charmap.Windows1252}, nil
	default:
		return Codec{}, fmt.Errorf("unsupported wire charset %q", charset)
	}
}

// Encode converts native text to wire bytes. Runes without a representation
// in the wire charset are replaced, never rejected.
func (c Codec) Encode(text string) []byte {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	if c.enc == nil {
		return []byte(text)
	}
	out, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).Bytes([]byte(text))
	if err != nil {
		// ReplaceUnsupported handles unmappable runes; anything else means
		// the input itself was malformed beyond repair.
		return []byte(text)
	}
	return out
}

// Decode converts wire bytes to native text. Byte sequences invalid in the
// wire charset are replaced with U+FFFD.
func (c Codec) Decode(b []byte) string {
	if c.enc == nil {
		if utf8.Valid(b) {
			return string(b)
		}
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}

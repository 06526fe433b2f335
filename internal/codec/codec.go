// Package codec transcodes PlantUML diagram source into the compact
// URL-safe token the public rendering service expects, and back.
//
// The token is raw DEFLATE output re-encoded through a 64-symbol
// alphabet (digits first, then upper, lower, '-', '_'). This is a wire
// contract with the rendering service: a different alphabet order or
// padding scheme simply fails to render.
package codec

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
)

// alphabet maps 6-bit values to token characters. Digits carry 0-9,
// uppercase 10-35, lowercase 36-61, '-' is 62 and '_' is 63.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// DecodeError reports a token whose byte stream is not valid
// raw-deflate data (corrupt or truncated token).
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "codec: invalid token: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode compresses diagram source with raw DEFLATE at best compression
// and transcodes the result into the token alphabet. Encoding is
// deterministic and never fails; the empty string yields a short token
// covering DEFLATE's own framing bytes.
func Encode(source string) string {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		// BestCompression is always a valid level.
		panic(err)
	}
	w.Write([]byte(source))
	w.Close()
	return encode64(buf.Bytes())
}

// Decode reverses Encode: token characters back to bytes, then raw
// INFLATE. Unrecognized characters decode to value 0 and a short final
// group is zero-filled; malformed tokens degrade silently at the
// character level and only an invalid deflate stream is an error.
func Decode(token string) (string, error) {
	r := flate.NewReader(bytes.NewReader(decode64(token)))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	return string(out), nil
}

// encode64 packs each 3-byte group into 4 alphabet characters. The
// final group is padded with zero bytes, so output length is always a
// multiple of 4.
func encode64(data []byte) string {
	var b strings.Builder
	b.Grow((len(data) + 2) / 3 * 4)

	for i := 0; i < len(data); i += 3 {
		b1 := data[i]
		var b2, b3 byte
		if i+1 < len(data) {
			b2 = data[i+1]
		}
		if i+2 < len(data) {
			b3 = data[i+2]
		}
		b.WriteByte(alphabet[b1>>2])
		b.WriteByte(alphabet[(b1&0x3)<<4|b2>>4])
		b.WriteByte(alphabet[(b2&0xF)<<2|b3>>6])
		b.WriteByte(alphabet[b3&0x3F])
	}
	return b.String()
}

// decode64 unpacks each 4-character group into 3 bytes. Missing
// trailing characters are treated as value 0. Trailing zero bytes from
// encode-side padding are harmless: the deflate stream is
// self-delimiting and the reader stops at its final block.
func decode64(token string) []byte {
	out := make([]byte, 0, (len(token)+3)/4*3)

	for i := 0; i < len(token); i += 4 {
		var v [4]byte
		for j := 0; j < 4; j++ {
			if i+j < len(token) {
				v[j] = sixBits(token[i+j])
			}
		}
		out = append(out,
			v[0]<<2|v[1]>>4,
			(v[1]&0xF)<<4|v[2]>>2,
			(v[2]&0x3)<<6|v[3])
	}
	return out
}

// sixBits maps a token character to its 6-bit value. Unrecognized
// characters map to 0 rather than failing; consumers rely on this
// forgiving decode of slightly corrupted tokens.
func sixBits(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'Z':
		return c - 'A' + 10
	case c >= 'a' && c <= 'z':
		return c - 'a' + 36
	case c == '-':
		return 62
	case c == '_':
		return 63
	}
	return 0
}

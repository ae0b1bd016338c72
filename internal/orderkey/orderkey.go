// Package orderkey derives short letter codes from order ids so admins can
// read an order reference aloud or search for it.
package orderkey

import "unicode/utf16"

// DefaultLength is the number of letters in a derived key.
const DefaultLength = 10

const (
	seed     = 5381
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// refill keeps the generator producing letters once the quotient hits zero
	refill = 0x1234567
)

// Derive returns a key of length letters A-Z computed from id alone.
// The boolean is false when id is empty; callers display the raw id then.
//
// The hash is djb2 over UTF-16 code units, wrapped to a signed 32-bit value,
// which keeps keys identical to the ones the storefront has already shown.
func Derive(id string, length int) (string, bool) {
	if id == "" || length <= 0 {
		return "", false
	}

	h := int32(seed)
	for _, c := range utf16.Encode([]rune(id)) {
		h = h*33 + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}

	out := make([]byte, length)
	for i := range out {
		out[i] = alphabet[v%int64(len(alphabet))]
		next := v / int64(len(alphabet))
		if next == 0 {
			next = v ^ refill
		}
		v = next
	}
	return string(out), true
}

// DisplayKey returns the key shown for an order: existing verbatim, else
// derived from id, else id itself.
func DisplayKey(existing, id string, length int) string {
	if existing != "" {
		return existing
	}
	if key, ok := Derive(id, length); ok {
		return key
	}
	return id
}

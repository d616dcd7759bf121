// Package roomid mints room identifiers: UUIDv7 values rendered as 26
// lowercase Crockford base32 characters, so ids sort by creation time.
package roomid

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Crockford's base32, lowercase
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of an encoded id.
const Length = 26

// Generator mints ids from a source of random bytes.
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a generator reading randomness from r. A nil r uses
// crypto/rand.
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

// New returns a fresh room id.
func New() string {
	id, err := NewGenerator(nil).Generate()
	if err != nil {
		// crypto/rand does not fail on supported platforms
		panic("roomid: " + err.Error())
	}
	return id
}

// Generate mints an id.
func (g *Generator) Generate() (string, error) {
	u, err := uuid.NewV7FromReader(g.rand)
	if err != nil {
		return "", fmt.Errorf("generate room id: %w", err)
	}
	return Encode(u), nil
}

// Encode renders u as 26 base32 characters. The leading character carries
// only 3 bits so it is always 0-7.
func Encode(u uuid.UUID) string {
	out := make([]byte, Length)
	// 130 bits of output for 128 bits of input: left-pad with two zero bits.
	var acc uint64
	bits := 2
	pos := 0
	for _, b := range u {
		acc = acc<<8 | uint64(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[pos] = alphabet[(acc>>uint(bits))&0x1f]
			pos++
		}
	}
	return string(out)
}

// Decode parses an encoded id back into a UUID.
func Decode(id string) (uuid.UUID, error) {
	var u uuid.UUID
	if err := Validate(id); err != nil {
		return u, err
	}
	var acc uint64
	bits := -2
	i := 0
	for _, c := range id {
		acc = acc<<5 | uint64(strings.IndexRune(alphabet, c))
		bits += 5
		if bits >= 8 {
			bits -= 8
			u[i] = byte(acc >> uint(bits))
			i++
		}
	}
	return u, nil
}

// Validate checks that id is 26 lowercase base32 characters starting with
// 0-7.
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("room ID must be exactly %d characters, got %d", Length, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("room ID first character must be 0-7, got %c", id[0])
	}
	for i, char := range id {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	return nil
}

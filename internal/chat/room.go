package chat

import (
	"errors"
	"strings"

	"github.com/jwalitptl/neuroscan-api/pkg/validator"
)

var ErrInvalidRoom = errors.New("invalid room id")

// Room is a two-person conversation. A is always the lexically smaller email.
type Room struct {
	A, B string
}

// RoomID returns the canonical room id for two participants.
func RoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// ParseRoom splits a room id at the first '_' after the first '@'. Domains
// cannot contain '_', so that underscore is the separator even when the local
// parts contain underscores.
func ParseRoom(id string) (Room, error) {
	at := strings.IndexByte(id, '@')
	if at < 0 {
		return Room{}, ErrInvalidRoom
	}
	sep := strings.IndexByte(id[at:], '_')
	if sep < 0 {
		return Room{}, ErrInvalidRoom
	}
	sep += at

	r := Room{A: id[:sep], B: id[sep+1:]}
	if !validator.IsEmail(r.A) || !validator.IsEmail(r.B) {
		return Room{}, ErrInvalidRoom
	}
	if r.A >= r.B {
		return Room{}, ErrInvalidRoom
	}
	return r, nil
}

func (r Room) String() string {
	return r.A + "_" + r.B
}

// Has reports whether email is one of the two participants.
func (r Room) Has(email string) bool {
	return email == r.A || email == r.B
}

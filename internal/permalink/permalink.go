// Package permalink maps sequential database ids to opaque public tokens and back.
//
// A token is a pure function of (id, salt): the id is permuted by a salt-keyed
// Feistel network, a salt-keyed tag is packed next to it, and the result is
// rendered with a salt-shuffled sqids alphabet. Decoding re-derives the tag and
// re-encodes the numbers, so malformed, tampered, non-canonical and foreign-salt
// tokens are all rejected. The salt gives obscurity against enumeration; it is
// not a cryptographic boundary.
package permalink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sqids/sqids-go"
)

const (
	idBits   = 40
	halfBits = idBits / 2
	tagBits  = 24
	rounds   = 4

	halfMask = 1<<halfBits - 1
	idMask   = 1<<idBits - 1
	tagMask  = 1<<tagBits - 1

	minLength      = 8
	maxTokenLength = 32

	baseAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// MaxID is the largest id that can be encoded.
const MaxID int64 = idMask

var (
	ErrEmptySalt = errors.New("permalink: salt cannot be empty")
	ErrInvalidID = errors.New("permalink: id must be between 1 and MaxID")
)

// Obfuscator encodes and decodes permalink tokens under one salt.
// It is immutable and safe for concurrent use.
type Obfuscator struct {
	codec     *sqids.Sqids
	roundKeys [rounds]uint32
	tagKey    []byte
}

// New builds an Obfuscator for the deployment salt.
func New(salt string) (*Obfuscator, error) {
	if salt == "" {
		return nil, ErrEmptySalt
	}

	master := hmac.New(sha256.New, []byte(salt))
	master.Write([]byte("trail/permalink/v1"))
	key := master.Sum(nil)

	o := &Obfuscator{tagKey: key[16:]}
	for i := range o.roundKeys {
		o.roundKeys[i] = binary.BigEndian.Uint32(key[i*4:])
	}

	codec, err := sqids.New(sqids.Options{
		Alphabet:  shuffleAlphabet(salt),
		MinLength: minLength,
	})
	if err != nil {
		return nil, fmt.Errorf("permalink: build codec: %w", err)
	}
	o.codec = codec
	return o, nil
}

// Encode returns the token for id.
func (o *Obfuscator) Encode(id int64) (string, error) {
	if id < 1 || id > MaxID {
		return "", ErrInvalidID
	}
	mixed := o.mix(uint64(id))
	packed := o.tag(mixed)<<idBits | mixed
	return o.codec.Encode([]uint64{packed})
}

// MustEncode is Encode for ids already known to be valid (primary keys read
// back from the store). It panics on out-of-range ids.
func (o *Obfuscator) MustEncode(id int64) string {
	token, err := o.Encode(id)
	if err != nil {
		panic(fmt.Sprintf("permalink: encode %d: %v", id, err))
	}
	return token
}

// Decode returns the id for token. ok is false for anything that was not
// produced by Encode under this salt; the returned id is then meaningless.
func (o *Obfuscator) Decode(token string) (id int64, ok bool) {
	if len(token) < minLength || len(token) > maxTokenLength {
		return 0, false
	}
	for i := 0; i < len(token); i++ {
		if !isAlnum(token[i]) {
			return 0, false
		}
	}

	// Client input must never panic the caller.
	defer func() {
		if recover() != nil {
			id, ok = 0, false
		}
	}()

	numbers := o.codec.Decode(token)
	if len(numbers) != 1 {
		return 0, false
	}
	packed := numbers[0]
	if packed>>idBits > tagMask {
		return 0, false
	}

	mixed := packed & idMask
	if packed>>idBits != o.tag(mixed) {
		return 0, false
	}

	canonical, err := o.codec.Encode(numbers)
	if err != nil || canonical != token {
		return 0, false
	}

	raw := o.unmix(mixed)
	if raw == 0 {
		return 0, false
	}
	return int64(raw), true
}

// mix is a keyed permutation of the 40-bit id space.
func (o *Obfuscator) mix(v uint64) uint64 {
	left, right := (v>>halfBits)&halfMask, v&halfMask
	for i := 0; i < rounds; i++ {
		left, right = right, left^round(right, o.roundKeys[i])
	}
	return left<<halfBits | right
}

func (o *Obfuscator) unmix(v uint64) uint64 {
	left, right := (v>>halfBits)&halfMask, v&halfMask
	for i := rounds - 1; i >= 0; i-- {
		left, right = right^round(left, o.roundKeys[i]), left
	}
	return left<<halfBits | right
}

func (o *Obfuscator) tag(mixed uint64) uint64 {
	mac := hmac.New(sha256.New, o.tagKey)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], mixed)
	mac.Write(buf[:])
	sum := mac.Sum(nil)
	return uint64(sum[0])<<16 | uint64(sum[1])<<8 | uint64(sum[2])
}

// round is the Feistel round function (splitmix64 finalizer over half||key).
func round(half uint64, key uint32) uint64 {
	z := half<<32 | uint64(key)
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	z *= 0x94d049bb133111eb
	z ^= z >> 31
	return z & halfMask
}

// shuffleAlphabet is a deterministic Fisher-Yates shuffle seeded by the salt.
func shuffleAlphabet(salt string) string {
	alphabet := []byte(baseAlphabet)
	stream := sha256.Sum256([]byte("trail/alphabet/" + salt))
	pos := 0
	next := func() uint32 {
		if pos+4 > len(stream) {
			stream = sha256.Sum256(stream[:])
			pos = 0
		}
		v := binary.BigEndian.Uint32(stream[pos:])
		pos += 4
		return v
	}
	for i := len(alphabet) - 1; i > 0; i-- {
		j := int(next() % uint32(i+1))
		alphabet[i], alphabet[j] = alphabet[j], alphabet[i]
	}
	return string(alphabet)
}

func isAlnum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

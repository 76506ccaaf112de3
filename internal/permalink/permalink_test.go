package permalink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newObfuscator(t *testing.T, salt string) *Obfuscator {
	t.Helper()
	o, err := New(salt)
	require.NoError(t, err)
	return o
}

func TestNewRejectsEmptySalt(t *testing.T) {
	o, err := New("")
	assert.ErrorIs(t, err, ErrEmptySalt)
	assert.Nil(t, o)
}

func TestRoundTrip(t *testing.T) {
	o := newObfuscator(t, "test-salt")

	ids := []int64{1, 2, 3, 42, 999, 65535, 1 << 20, 1<<31 - 1, 1 << 32, MaxID - 1, MaxID}
	for i := int64(1); i <= 5000; i++ {
		ids = append(ids, i)
	}

	for _, id := range ids {
		token, err := o.Encode(id)
		require.NoError(t, err, "id %d", id)
		assert.GreaterOrEqual(t, len(token), minLength)

		decoded, ok := o.Decode(token)
		require.True(t, ok, "token %q for id %d did not decode", token, id)
		assert.Equal(t, id, decoded)
	}
}

func TestEncodeIsDeterministicAndInjective(t *testing.T) {
	o := newObfuscator(t, "test-salt")
	again := newObfuscator(t, "test-salt")

	seen := make(map[string]int64)
	for id := int64(1); id <= 10000; id++ {
		token := o.MustEncode(id)
		assert.Equal(t, token, again.MustEncode(id))

		prev, dup := seen[token]
		require.False(t, dup, "ids %d and %d share token %q", prev, id, token)
		seen[token] = id
	}
}

func TestEncodeRejectsOutOfRange(t *testing.T) {
	o := newObfuscator(t, "test-salt")

	for _, id := range []int64{0, -1, -1 << 40, MaxID + 1} {
		_, err := o.Encode(id)
		assert.ErrorIs(t, err, ErrInvalidID, "id %d", id)
	}
	assert.Panics(t, func() { o.MustEncode(0) })
}

func TestSequentialIDsDoNotLookSequential(t *testing.T) {
	o := newObfuscator(t, "test-salt")

	a, b := o.MustEncode(100), o.MustEncode(101)
	assert.NotEqual(t, a[:4], b[:4])
}

func TestDecodeRejectsMalformedTokens(t *testing.T) {
	o := newObfuscator(t, "test-salt")

	cases := []string{
		"",
		"0",
		"abc",
		"not-a-real-token",
		"has space1",
		"üñíçødé123",
		"abcdefghijklmnopqrstuvwxyz0123456789",
		"00000000",
		"zzzzzzzz",
	}
	for _, token := range cases {
		_, ok := o.Decode(token)
		assert.False(t, ok, "token %q should be rejected", token)
	}
}

func TestDecodeRejectsTamperedTokens(t *testing.T) {
	o := newObfuscator(t, "test-salt")
	alphabet := shuffleAlphabet("test-salt")

	for id := int64(1); id <= 200; id++ {
		token := o.MustEncode(id)
		for pos := 0; pos < len(token); pos++ {
			b := []byte(token)
			for j := 0; j < len(alphabet); j++ {
				if alphabet[j] != b[pos] {
					b[pos] = alphabet[j]
					break
				}
			}
			decoded, ok := o.Decode(string(b))
			if ok {
				// A single substitution may land on another valid token only
				// if it names a different id; it must never alias this one.
				assert.NotEqual(t, id, decoded)
			}
		}
	}
}

func TestDecodeRejectsForeignSaltTokens(t *testing.T) {
	ours := newObfuscator(t, "salt-one")
	theirs := newObfuscator(t, "salt-two")

	accepted := 0
	for id := int64(1); id <= 2000; id++ {
		if _, ok := ours.Decode(theirs.MustEncode(id)); ok {
			accepted++
		}
	}
	assert.Zero(t, accepted)
}

func TestDifferentSaltsProduceDifferentTokens(t *testing.T) {
	a := newObfuscator(t, "salt-one")
	b := newObfuscator(t, "salt-two")

	assert.NotEqual(t, a.MustEncode(7), b.MustEncode(7))
}

func TestMixIsAPermutation(t *testing.T) {
	o := newObfuscator(t, "test-salt")

	for _, v := range []uint64{0, 1, 2, 12345, idMask - 1, idMask} {
		mixed := o.mix(v)
		assert.LessOrEqual(t, mixed, uint64(idMask))
		assert.Equal(t, v, o.unmix(mixed))
	}
}

func TestShuffleAlphabetKeepsEveryCharacter(t *testing.T) {
	shuffled := shuffleAlphabet("test-salt")

	assert.Len(t, shuffled, len(baseAlphabet))
	assert.ElementsMatch(t, []byte(baseAlphabet), []byte(shuffled))
	assert.NotEqual(t, baseAlphabet, shuffled)
}

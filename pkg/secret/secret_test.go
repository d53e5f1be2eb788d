package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := New("server-key")
	require.NoError(t, err)

	enc, err := c.Encrypt("p@ss")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(enc))
	assert.NotContains(t, enc, "p@ss")

	got, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "p@ss", got)
}

func TestCipherPlaintextPassthrough(t *testing.T) {
	c, err := New("server-key")
	require.NoError(t, err)

	got, err := c.Decrypt("legacy-plain")
	require.NoError(t, err)
	assert.Equal(t, "legacy-plain", got)

	empty, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCipherWrongKey(t *testing.T) {
	a, _ := New("a")
	b, _ := New("b")
	enc, err := a.Encrypt("value")
	require.NoError(t, err)

	_, err = b.Decrypt(enc)
	assert.Error(t, err)

	_, err = New("")
	assert.Error(t, err)
}

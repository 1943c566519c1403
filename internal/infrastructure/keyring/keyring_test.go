package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeyring(t *testing.T) {
	k := NewMemory()
	service := AppEntryService("user123", "app456")

	_, err := k.Get(service, FieldSecretKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, k.Set(service, FieldSecretKey, "s3cret"))
	v, err := k.Get(service, FieldSecretKey)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	// fields are independent
	_, err = k.Get(service, FieldUserEmail)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, k.Delete(service, FieldSecretKey))
	_, err = k.Get(service, FieldSecretKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, k.Delete(service, FieldSecretKey))
}

func TestAppEntryService(t *testing.T) {
	assert.Equal(t,
		"https://user123@app456.type.world",
		AppEntryService("user123", "app456"))
}

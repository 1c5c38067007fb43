package util

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMd5ThenHex(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Md5ThenHex(nil))
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", Md5ThenHex([]byte("abc")))
}

func TestHashUUID(t *testing.T) {
	a := HashUUID(map[string]int{"weight": 3})
	b := HashUUID(map[string]int{"weight": 3})
	c := HashUUID(map[string]int{"weight": 4})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)

	assert.Empty(t, HashUUID(func() {}))
}

func TestContentUUID(t *testing.T) {
	id, err := ContentUUID(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "90015098-3cd2-4fb0-d696-3f7d28e17f72", id)
	assert.Equal(t, md5UUID([]byte("abc")), id)
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

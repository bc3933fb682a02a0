package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN(t *testing.T) {
	dsn, err := NormalizeDSN("wardrobe:secret@tcp(127.0.0.1:3306)/wardrobe")
	require.NoError(t, err)
	assert.Contains(t, dsn, "wardrobe:secret@tcp(127.0.0.1:3306)/wardrobe")
	assert.Contains(t, dsn, "parseTime=true")

	_, err = NormalizeDSN("not a dsn")
	assert.Error(t, err)
}

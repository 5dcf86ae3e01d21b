package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullInt64(t *testing.T) {
	assert.False(t, nullInt64(nil).Valid)

	v := int64(42)
	got := nullInt64(&v)
	assert.True(t, got.Valid)
	assert.Equal(t, int64(42), got.Int64)
}

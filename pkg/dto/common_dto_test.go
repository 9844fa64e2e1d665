package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageQueryDefaults(t *testing.T) {
	var q PageQuery
	q.Normalize()

	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 0, q.Offset())
}

func TestNewPaginationMeta(t *testing.T) {
	meta := NewPaginationMeta(PageQuery{Page: 3, Limit: 10}, 21)

	assert.Equal(t, 3, meta.CurrentPage)
	assert.Equal(t, 3, meta.TotalPages)
	assert.Equal(t, int64(21), meta.TotalItems)
}

package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 120)
	assert.Equal(t, Pagination{Page: 1, PerPage: DefaultPerPage, Total: 120, TotalPages: 3}, p)

	p = NewPagination(2, 10_000, 1200)
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Equal(t, 3, p.TotalPages)

	assert.Equal(t, 0, NewPagination(1, 20, 0).TotalPages)
}

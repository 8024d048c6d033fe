package paging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		totalPages int
		want       int
	}{
		{"first of many", 1, 5, 2},
		{"middle", 3, 5, 4},
		{"last page", 5, 5, 5},
		{"past last page", 6, 5, 6},
		{"zero total treated as one", 1, 0, 1},
		{"negative total treated as one", 1, -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Advance(tt.page, tt.totalPages))
		})
	}
}

func TestRetreat(t *testing.T) {
	tests := []struct {
		page int
		want int
	}{
		{1, 1},
		{2, 1},
		{5, 4},
		{6, 5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Retreat(tt.page), "page %d", tt.page)
	}
}

func TestAdvanceRetreat_Boundaries(t *testing.T) {
	for _, total := range []int{1, 2, 7} {
		for _, p := range []int{1, total, total + 1} {
			if p < total {
				assert.Equal(t, p+1, Advance(p, total))
			} else {
				assert.Equal(t, p, Advance(p, total))
			}
			if p > 1 {
				assert.Equal(t, p-1, Retreat(p))
			} else {
				assert.Equal(t, p, Retreat(p))
			}
		}
	}
}

func TestPage_UnmarshalJSON_TopLevel(t *testing.T) {
	var p Page[string]
	err := json.Unmarshal([]byte(`{"data":["a","b"],"page":2,"totalPages":3,"total":14}`), &p)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, p.Data)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 14, p.Total)
	assert.True(t, p.HasNext())
	assert.True(t, p.HasPrev())
}

func TestPage_UnmarshalJSON_NestedPagination(t *testing.T) {
	var p Page[int]
	err := json.Unmarshal([]byte(`{"data":[1],"totalPages":2,"pagination":{"total":7,"page":1}}`), &p)
	require.NoError(t, err)

	assert.Equal(t, 7, p.Total)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 2, p.TotalPages)
	assert.False(t, p.HasPrev())
}

func TestPage_UnmarshalJSON_Defaults(t *testing.T) {
	var p Page[int]
	err := json.Unmarshal([]byte(`{}`), &p)
	require.NoError(t, err)

	assert.NotNil(t, p.Data)
	assert.True(t, p.Empty())
	assert.Equal(t, FirstPage, p.Page)
	assert.Equal(t, 1, p.Pages())
	assert.False(t, p.HasNext())
}

func TestPage_UnmarshalJSON_Malformed(t *testing.T) {
	var p Page[int]
	err := json.Unmarshal([]byte(`{"data":"nope"}`), &p)
	assert.Error(t, err)
}

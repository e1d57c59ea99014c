package orders

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(id, status string) Order {
	return Order{OrderID: id, Status: status}
}

func TestSetMergePreservesInsertionOrder(t *testing.T) {
	s := NewSet()
	s.Merge([]Order{order("A", "shipped"), order("B", "pending")})
	s.Merge([]Order{order("B", "delivered"), order("C", "pending")})

	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "A", items[0].OrderID)
	assert.Equal(t, "B", items[1].OrderID)
	assert.Equal(t, "C", items[2].OrderID)
	// Overwrites keep first-seen position but take the latest record.
	assert.Equal(t, "delivered", items[1].Status)
}

func TestSetMergeIdempotent(t *testing.T) {
	batch := []Order{order("A", "shipped"), order("B", "pending")}

	s := NewSet()
	s.Merge(batch)
	once := s.Items()

	s.Merge(batch)
	twice := s.Items()

	assert.Equal(t, once, twice)
	assert.Equal(t, 2, s.Len())
}

func TestSetMergeSkipsEmptyID(t *testing.T) {
	s := NewSet()
	s.Merge([]Order{order("", "ghost"), order("A", "shipped")})
	assert.Equal(t, 1, s.Len())
}

func TestSetGet(t *testing.T) {
	s := NewSet()
	s.Merge([]Order{order("A", "shipped")})

	got, ok := s.Get("A")
	require.True(t, ok)
	assert.Equal(t, "shipped", got.Status)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestSetJSONRoundTrip(t *testing.T) {
	s := NewSet()
	s.Merge([]Order{order("B", "pending"), order("A", "shipped")})

	data, err := json.Marshal(s)
	require.NoError(t, err)

	restored := NewSet()
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, s.Items(), restored.Items())
}

func TestSetMarshalEmpty(t *testing.T) {
	data, err := json.Marshal(NewSet())
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindDescriptors(t *testing.T) {
	assert.Equal(t, StatusLost, KindLost.InitialStatus())
	assert.Equal(t, StatusFound, KindFound.InitialStatus())
	assert.Equal(t, "lost_items", KindLost.Table())
	assert.Equal(t, "found", KindFound.Namespace())

	_, ok := ParseKind("stolen")
	assert.False(t, ok)
	k, ok := ParseKind("found")
	require.True(t, ok)
	assert.Equal(t, KindFound, k)
}

func TestKindTransitionsAreForwardSingleStep(t *testing.T) {
	cases := []struct {
		kind     ItemKind
		from, to ItemStatus
		allowed  bool
	}{
		{KindLost, StatusLost, StatusClaimed, true},
		{KindLost, StatusClaimed, StatusReturned, true},
		{KindLost, StatusLost, StatusReturned, false},
		{KindLost, StatusClaimed, StatusLost, false},
		{KindLost, StatusReturned, StatusReturned, false},
		{KindLost, StatusLost, StatusMatched, false},
		{KindFound, StatusFound, StatusMatched, true},
		{KindFound, StatusMatched, StatusReturned, true},
		{KindFound, StatusFound, StatusReturned, false},
		{KindFound, StatusFound, StatusClaimed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.kind.CanTransition(tc.from, tc.to), "%s: %s -> %s", tc.kind, tc.from, tc.to)
	}

	_, ok := KindFound.Next(StatusReturned)
	assert.False(t, ok)
	assert.True(t, KindLost.Terminal(StatusReturned))
}

func TestChainReturnsCopy(t *testing.T) {
	chain := KindLost.Chain()
	chain[0] = StatusReturned
	assert.Equal(t, StatusLost, KindLost.InitialStatus())
}

func TestItemJSONEmptyCollections(t *testing.T) {
	raw, err := json.Marshal(Item{ID: "a", Kind: KindLost})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"images":[]`)
	assert.Contains(t, string(raw), `"metadata":{}`)
}

func TestImageListRoundTripsThroughDriver(t *testing.T) {
	value, err := ImageList{"http://m/lost/a.jpg", "http://m/lost/b.jpg"}.Value()
	require.NoError(t, err)

	var scanned ImageList
	require.NoError(t, scanned.Scan([]byte(value.(string))))
	assert.Equal(t, ImageList{"http://m/lost/a.jpg", "http://m/lost/b.jpg"}, scanned)

	empty, err := ImageList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)
}

func TestFilterPaging(t *testing.T) {
	f := ItemFilter{Page: 3, PageSize: 500}
	f.Normalize(100)
	assert.Equal(t, 100, f.PageSize)
	assert.Equal(t, 200, f.Offset())

	var zero ItemFilter
	zero.Normalize(0)
	assert.Equal(t, 1, zero.Page)
	assert.Equal(t, 20, zero.PageSize)
	assert.Equal(t, 0, zero.Offset())
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backtrackers-api/internal/dto"
	"github.com/noah-isme/backtrackers-api/internal/models"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
)

func TestSearchGroupsMatchesPerKind(t *testing.T) {
	f := newItemFixture()
	ctx := context.Background()
	owner := member("owner")
	_, err := f.svc.Create(ctx, models.KindLost, dto.CreateItemRequest{Title: "Blue umbrella"}, nil, owner)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, models.KindFound, dto.CreateItemRequest{Title: "Scarf", Description: "next to an UMBRELLA stand"}, nil, owner)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, models.KindFound, dto.CreateItemRequest{Title: "Keys"}, nil, owner)
	require.NoError(t, err)

	svc := NewSearchService(f.svc, 10)
	res, hit, err := svc.Search(ctx, "umbrella")
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, res.Lost, 1)
	require.Len(t, res.Found, 1)
	assert.Equal(t, "Scarf", res.Found[0].Title)

	_, hit, err = svc.Search(ctx, "umbrella")
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestSearchCapsResultsPerKind(t *testing.T) {
	f := newItemFixture()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := f.svc.Create(ctx, models.KindLost, dto.CreateItemRequest{Title: "Phone"}, nil, member("owner"))
		require.NoError(t, err)
	}

	res, _, err := NewSearchService(f.svc, 3).Search(ctx, "phone")
	require.NoError(t, err)
	assert.Len(t, res.Lost, 3)
	assert.Empty(t, res.Found)
}

func TestSearchRequiresKeyword(t *testing.T) {
	_, _, err := NewSearchService(newItemFixture().svc, 0).Search(context.Background(), "  ")
	assertCode(t, err, appErrors.ErrValidation)
}

package memstore

import (
	"context"
	"errors"
	"testing"

	"estimator/internal/utils"
	"estimator/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_DuplicateIDs(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateCustomer(ctx, &types.Customer{ID: "CUS-000001", Name: "A"}))
	err := s.CreateCustomer(ctx, &types.Customer{ID: "CUS-000001", Name: "B"})
	assert.ErrorIs(t, err, types.ErrDuplicateID)

	require.NoError(t, s.CreateEstimate(ctx, &types.Estimate{ID: "EST-000001"}))
	assert.ErrorIs(t, s.CreateEstimate(ctx, &types.Estimate{ID: "EST-000001"}), types.ErrDuplicateID)

	assert.Equal(t, []Op{OpCreateCustomer, OpCreateEstimate}, s.Writes())
}

func TestStore_FailOnIsConsumedInOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	s.FailOn(OpCreateEstimate, boom)

	assert.ErrorIs(t, s.CreateEstimate(ctx, &types.Estimate{ID: "EST-1"}), boom)
	assert.NoError(t, s.CreateEstimate(ctx, &types.Estimate{ID: "EST-1"}))
}

func TestStore_LineItemsEchoTokensAndKeepOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateEstimate(ctx, &types.Estimate{ID: "EST-1"}))
	rev := &types.EstimateRevision{EstimateID: "EST-1", Version: 1}
	require.NoError(t, s.CreateRevision(ctx, rev))

	inserted, err := s.CreateLineItems(ctx, []*types.LineItem{
		{EstimateID: "EST-1", RevisionID: rev.ID, Position: 1, TempItemID: utils.StringPtr("temp-b")},
		{EstimateID: "EST-1", RevisionID: rev.ID, Position: 0, TempItemID: utils.StringPtr("temp-a")},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 2)
	assert.Equal(t, "temp-b", *inserted[0].TempItemID)
	assert.NotEmpty(t, inserted[0].ID)

	rows, err := s.LineItemsByRevisionID(ctx, rev.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "temp-a", *rows[0].TempItemID)
}

func TestStore_LineItemsRequireRevision(t *testing.T) {
	_, err := New().CreateLineItems(context.Background(), []*types.LineItem{{RevisionID: "missing"}})
	assert.Error(t, err)
}

func TestStore_UpdateDocumentEntity(t *testing.T) {
	ctx := context.Background()
	s := New()

	doc := &types.Document{EntityType: types.EntityTypeEstimate, EntityID: "temp-1"}
	require.NoError(t, s.CreateDocument(ctx, doc))

	require.NoError(t, s.UpdateDocumentEntity(ctx, doc.ID, types.EntityTypeEstimate, "EST-1"))
	got, err := s.DocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "EST-1", got.EntityID)

	assert.ErrorIs(t, s.UpdateDocumentEntity(ctx, "missing", types.EntityTypeEstimate, "EST-1"), types.ErrDocumentNotFound)
}

package reports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commentum/commentum/models"
	"github.com/commentum/commentum/moderation/store"
)

func testLedger(t *testing.T) (*Ledger, *store.MemStore) {
	t.Helper()
	s := store.NewMemStore()
	return NewLedger(s, nil), s
}

func newContent(t *testing.T, s *store.MemStore, authorID uint) uint {
	t.Helper()
	c := &models.Content{AuthorID: authorID, Body: "a comment"}
	require.NoError(t, s.CreateContent(context.Background(), c))
	return c.ID
}

func TestFileBasics(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	ledger, s := testLedger(t)
	contentID := newContent(t, s, 1)

	report, err := ledger.File(ctx, contentID, 2, ReasonSpam, "looks like spam")
	require.NoError(err)
	assert.Equal(models.ReportStatusPending, report.Status)

	content, err := s.GetContent(ctx, contentID)
	require.NoError(err)
	assert.Equal(models.ReportStatusPending, content.ReportStatus)
	assert.Equal(1, content.ReportCount)
	assert.NotNil(content.LastReportedAt)
}

func TestFileDuplicatePending(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	ledger, s := testLedger(t)
	contentID := newContent(t, s, 1)

	_, err := ledger.File(ctx, contentID, 2, ReasonSpam, "")
	require.NoError(err)
	_, err = ledger.File(ctx, contentID, 2, ReasonOffensive, "")
	assert.ErrorIs(err, ErrAlreadyReported)

	// a different reporter is fine
	_, err = ledger.File(ctx, contentID, 3, ReasonSpam, "")
	assert.NoError(err)
}

func TestFileAgainAfterResolution(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	ledger, s := testLedger(t)
	contentID := newContent(t, s, 1)

	_, err := ledger.File(ctx, contentID, 2, ReasonSpam, "")
	require.NoError(err)
	_, _, err = ledger.Resolve(ctx, contentID, 2, models.ReportStatusDismissed, "mod-1", "")
	require.NoError(err)

	// the earlier report was reviewed; a fresh, independent report is allowed
	second, err := ledger.File(ctx, contentID, 2, ReasonHarassment, "")
	require.NoError(err)
	assert.Equal(models.ReportStatusPending, second.Status)

	all, err := s.ListReports(ctx, contentID)
	require.NoError(err)
	assert.Len(all, 2)
}

func TestFileRejections(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ledger, s := testLedger(t)
	contentID := newContent(t, s, 1)

	_, err := ledger.File(ctx, contentID, 1, ReasonSpam, "")
	assert.ErrorIs(err, ErrSelfReport)

	_, err = ledger.File(ctx, contentID, 2, "rude", "")
	assert.ErrorIs(err, ErrInvalidReason)

	_, err = ledger.File(ctx, 999, 2, ReasonSpam, "")
	assert.ErrorIs(err, store.ErrNotFound)

	deleted := true
	_, err = s.ApplyContent(ctx, contentID, store.ContentDelta{SetDeleted: &deleted, By: "mod-1"})
	assert.NoError(err)
	_, err = ledger.File(ctx, contentID, 2, ReasonSpam, "")
	assert.ErrorIs(err, ErrContentDeleted)
}

func TestResolveAggregation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	ledger, s := testLedger(t)
	contentID := newContent(t, s, 1)

	for _, reporter := range []uint{2, 3, 4} {
		_, err := ledger.File(ctx, contentID, reporter, ReasonSpam, "")
		require.NoError(err)
	}

	// two of three reviewed: content stays pending
	_, status, err := ledger.Resolve(ctx, contentID, 2, models.ReportStatusResolved, "mod-1", "")
	require.NoError(err)
	assert.Equal(models.ReportStatusPending, status)
	_, status, err = ledger.Resolve(ctx, contentID, 3, models.ReportStatusDismissed, "mod-1", "")
	require.NoError(err)
	assert.Equal(models.ReportStatusPending, status)

	content, err := s.GetContent(ctx, contentID)
	require.NoError(err)
	assert.Equal(models.ReportStatusPending, content.ReportStatus)

	// the last review decides the content-level status
	_, status, err = ledger.Resolve(ctx, contentID, 4, models.ReportStatusResolved, "mod-1", "confirmed")
	require.NoError(err)
	assert.Equal(models.ReportStatusResolved, status)

	content, err = s.GetContent(ctx, contentID)
	require.NoError(err)
	assert.Equal(models.ReportStatusResolved, content.ReportStatus)
}

func TestResolveRejections(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ledger, s := testLedger(t)
	contentID := newContent(t, s, 1)

	_, _, err := ledger.Resolve(ctx, contentID, 2, models.ReportStatusResolved, "mod-1", "")
	assert.ErrorIs(err, ErrReportNotFound)

	_, ferr := ledger.File(ctx, contentID, 2, ReasonSpam, "")
	assert.NoError(ferr)
	_, _, err = ledger.Resolve(ctx, contentID, 2, "closed", "mod-1", "")
	assert.ErrorIs(err, ErrInvalidResolution)
}

func TestQueueOrdering(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	ledger, s := testLedger(t)
	one := newContent(t, s, 1)
	two := newContent(t, s, 1)

	_, err := ledger.File(ctx, one, 2, ReasonSpam, "")
	require.NoError(err)
	for _, reporter := range []uint{2, 3} {
		_, err := ledger.File(ctx, two, reporter, ReasonSpam, "")
		require.NoError(err)
	}

	queue, err := ledger.Queue(ctx, 10)
	require.NoError(err)
	require.Len(queue, 2)
	assert.Equal(two, queue[0].ID, "most reports first")
	assert.Equal(one, queue[1].ID)
}

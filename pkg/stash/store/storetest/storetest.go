// Package storetest holds the behavioural contract every stash.Store must
// satisfy. Store packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/stash/pkg/stash"
)

// Run exercises store against the stash.Store contract. newStore must return
// an empty store.
func Run(t *testing.T, newStore func(t *testing.T) stash.Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("InsertAssignsIncreasingIDs", func(t *testing.T) {
		s := newStore(t)
		first := noteRecord("alice", "first", base)
		second := noteRecord("alice", "second", base)
		require.NoError(t, s.Insert(ctx, first))
		require.NoError(t, s.Insert(ctx, second))

		assert.Positive(t, first.ID)
		assert.Greater(t, second.ID, first.ID)
	})

	t.Run("GetRoundTripsAllColumns", func(t *testing.T) {
		s := newStore(t)
		url, name, mime, meta := "/files/k", "report.pdf", "application/pdf", `{"storageKey":"k"}`
		size := int64(2048)
		rec := &stash.Record{
			OwnerID:   "alice",
			Title:     "Report",
			Content:   "quarterly",
			Type:      stash.TypeFile,
			FileURL:   &url,
			FileName:  &name,
			FileSize:  &size,
			MimeType:  &mime,
			Tags:      []string{"work", "q1", "work"},
			Metadata:  &meta,
			CreatedAt: base,
			UpdatedAt: base.Add(time.Minute),
		}
		require.NoError(t, s.Insert(ctx, rec))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("NullableColumnsStayNil", func(t *testing.T) {
		s := newStore(t)
		rec := noteRecord("alice", "note", base)
		rec.Tags = nil
		require.NoError(t, s.Insert(ctx, rec))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Nil(t, got.FileURL)
		assert.Nil(t, got.FileSize)
		assert.Nil(t, got.Metadata)
		assert.NotNil(t, got.Tags)
		assert.Empty(t, got.Tags)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, 424242)
		assert.ErrorIs(t, err, stash.ErrItemNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		s := newStore(t)
		rec := noteRecord("alice", "before", base)
		require.NoError(t, s.Insert(ctx, rec))

		rec.Title = "after"
		rec.Tags = []string{"x"}
		rec.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, s.Update(ctx, rec))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "after", got.Title)
		assert.Equal(t, []string{"x"}, got.Tags)
		assert.Equal(t, base.Add(time.Hour), got.UpdatedAt)
		assert.Equal(t, base, got.CreatedAt)
	})

	t.Run("UpdateUnknown", func(t *testing.T) {
		s := newStore(t)
		rec := noteRecord("alice", "ghost", base)
		rec.ID = 999
		assert.ErrorIs(t, s.Update(ctx, rec), stash.ErrItemNotFound)
	})

	t.Run("DeleteReturnsRemovedRow", func(t *testing.T) {
		s := newStore(t)
		rec := noteRecord("alice", "doomed", base)
		require.NoError(t, s.Insert(ctx, rec))

		removed, err := s.Delete(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, removed.ID)
		assert.Equal(t, "doomed", removed.Title)

		_, err = s.Get(ctx, rec.ID)
		assert.ErrorIs(t, err, stash.ErrItemNotFound)

		_, err = s.Delete(ctx, rec.ID)
		assert.ErrorIs(t, err, stash.ErrItemNotFound)
	})

	t.Run("ListByOwnerIsScopedAndOrdered", func(t *testing.T) {
		s := newStore(t)
		var aliceIDs []int64
		for i, title := range []string{"a1", "a2", "a3"} {
			rec := noteRecord("alice", title, base.Add(-time.Duration(i)*time.Hour))
			require.NoError(t, s.Insert(ctx, rec))
			aliceIDs = append(aliceIDs, rec.ID)
			require.NoError(t, s.Insert(ctx, noteRecord("bob", "b"+title, base)))
		}

		list, err := s.ListByOwner(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i, rec := range list {
			assert.Equal(t, "alice", rec.OwnerID)
			assert.Equal(t, aliceIDs[i], rec.ID)
		}

		empty, err := s.ListByOwner(ctx, "carol")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("IDsAreNotReused", func(t *testing.T) {
		s := newStore(t)
		first := noteRecord("alice", "first", base)
		require.NoError(t, s.Insert(ctx, first))
		_, err := s.Delete(ctx, first.ID)
		require.NoError(t, err)

		second := noteRecord("alice", "second", base)
		require.NoError(t, s.Insert(ctx, second))
		assert.Greater(t, second.ID, first.ID)
	})
}

func noteRecord(owner, title string, at time.Time) *stash.Record {
	return &stash.Record{
		OwnerID:   owner,
		Title:     title,
		Type:      stash.TypeNote,
		Tags:      []string{},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

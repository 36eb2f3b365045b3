package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/storage"
)

func newStore(t *testing.T) *MemoryStorage {
	t.Helper()
	return NewMemoryStorage(logger.NewTestLogger())
}

func TestCreateGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Create(ctx, models.NewSession("a", time.Now())))
	assert.Error(t, s.Create(ctx, models.NewSession("a", time.Now())))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseIdle, got.Phase)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Create(ctx, models.NewSession("a", time.Now())))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	got.Output = "mutated"

	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, again.Output)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Create(ctx, models.NewSession("a", time.Now())))

	updated, err := s.Update(ctx, "a", func(sess *models.Session) error {
		return sess.SelectImage(&models.UploadedImage{MIMEType: "image/png"})
	})
	require.NoError(t, err)
	assert.Equal(t, models.PhaseReady, updated.Phase)
	assert.Equal(t, uint64(1), updated.Generation)

	boom := errors.New("boom")
	unchanged, err := s.Update(ctx, "a", func(sess *models.Session) error {
		sess.Output = "discarded"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, unchanged.Output)

	got, _ := s.Get(ctx, "a")
	assert.Empty(t, got.Output)

	_, err = s.Update(ctx, "missing", func(*models.Session) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteAndCleanup(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Now()

	old := models.NewSession("old", now.Add(-2*time.Hour))
	fresh := models.NewSession("fresh", now)
	require.NoError(t, s.Create(ctx, old))
	require.NoError(t, s.Create(ctx, fresh))

	n, err := s.CleanupBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "fresh"))
	assert.ErrorIs(t, s.Delete(ctx, "fresh"), storage.ErrNotFound)
}

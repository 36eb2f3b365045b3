package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/storage"
)

func setup(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStorage(context.Background(), Config{Addr: mr.Addr(), TTL: time.Hour}, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedisStorage(ctx, Config{Addr: "127.0.0.1:1"}, logger.NewTestLogger())
	assert.Error(t, err)
}

func TestCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := setup(t)

	sess := models.NewSession("abc", time.Now())
	require.NoError(t, s.Create(ctx, sess))
	assert.Error(t, s.Create(ctx, sess))
	assert.True(t, mr.Exists("session:abc"))
	assert.Equal(t, time.Hour, mr.TTL("session:abc"))

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, models.PhaseIdle, got.Phase)

	require.NoError(t, s.Delete(ctx, "abc"))
	_, err = s.Get(ctx, "abc")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "abc"), storage.ErrNotFound)
}

func TestUpdateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)
	require.NoError(t, s.Create(ctx, models.NewSession("abc", time.Now())))

	img := &models.UploadedImage{Filename: "a.png", MIMEType: "image/png", DataURL: "data:image/png;base64,AAAA"}
	updated, err := s.Update(ctx, "abc", func(sess *models.Session) error {
		return sess.SelectImage(img)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), updated.Generation)

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got.Image)
	assert.Equal(t, "a.png", got.Image.Filename)
	assert.Equal(t, models.PhaseReady, got.Phase)
}

func TestUpdateRejectedLeavesStoredValue(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)
	require.NoError(t, s.Create(ctx, models.NewSession("abc", time.Now())))

	cur, err := s.Update(ctx, "abc", func(sess *models.Session) error {
		_, err := sess.Begin()
		return err
	})
	assert.ErrorIs(t, err, models.ErrNoImage)
	require.NotNil(t, cur)
	assert.Equal(t, models.PhaseIdle, cur.Phase)

	_, err = s.Update(ctx, "nope", func(*models.Session) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)
	require.NoError(t, s.Create(ctx, models.NewSession("abc", time.Now())))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "abc", func(sess *models.Session) error {
				sess.Generation++
				return nil
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, uint64(succeeded), got.Generation)
}

func TestGetCorruptValue(t *testing.T) {
	ctx := context.Background()
	s, mr := setup(t)
	require.NoError(t, mr.Set("session:bad", "{not json"))

	_, err := s.Get(ctx, "bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, storage.ErrNotFound))
	assert.False(t, errors.Is(err, goredis.Nil))
}

package proxysession

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis/redistest"
)

const vid = "4f9c2a56-8a8e-4c1b-9a0e-1f2d3c4b5a69"

func newUseCase(t *testing.T) *UseCase {
	t.Helper()
	client, _ := redistest.New(t)
	uc := NewUseCase(NewRedisStore(client), logger.NewNop())
	uc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return uc
}

func TestSaveAndLoad(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()

	data := json.RawMessage(`{"cookies":"a=1","notes":"work"}`)
	saved, err := uc.Save(ctx, vid, "Example.COM:8080", data)
	require.NoError(t, err)
	assert.Equal(t, "example.com", saved.Host)

	got, err := uc.Load(ctx, vid, "example.com")
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(got.Data))
	assert.Equal(t, saved.SavedAt, got.SavedAt)

	_, err = uc.Load(ctx, vid, "other.org")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = uc.Load(ctx, "someone-else", "example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveValidation(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()

	_, err := uc.Save(ctx, vid, "not a host", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidHost)

	_, err = uc.Save(ctx, vid, "example.com", json.RawMessage(`[1,2]`))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParams))

	big := json.RawMessage(`{"x":"` + strings.Repeat("a", MaxSessionBytes) + `"}`)
	_, err = uc.Save(ctx, vid, "example.com", big)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestSaveHostLimit(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()

	for i := range MaxHosts {
		_, err := uc.Save(ctx, vid, fmt.Sprintf("h%d.example.com", i), json.RawMessage(`{}`))
		require.NoError(t, err)
	}
	_, err := uc.Save(ctx, vid, "one-more.example.com", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrTooLarge)

	// overwriting an existing host is still allowed
	_, err = uc.Save(ctx, vid, "h0.example.com", json.RawMessage(`{"v":2}`))
	assert.NoError(t, err)
}

func TestApplyAndList(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()

	ok, err := uc.Apply(ctx, vid, "example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = uc.Save(ctx, vid, "b.example.com", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = uc.Save(ctx, vid, "a.example.com", json.RawMessage(`{}`))
	require.NoError(t, err)

	ok, err = uc.Apply(ctx, vid, "B.example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := uc.List(ctx, vid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.example.com", list[0].Host)
	assert.False(t, list[0].Active)
	assert.Equal(t, "b.example.com", list[1].Host)
	assert.True(t, list[1].Active)

	require.NoError(t, uc.Delete(ctx, vid, "b.example.com"))
	list, err = uc.List(ctx, vid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Active)

	assert.ErrorIs(t, uc.Delete(ctx, vid, "b.example.com"), ErrNotFound)
}

func TestStorageFailure(t *testing.T) {
	client, mr := redistest.New(t)
	uc := NewUseCase(NewRedisStore(client), logger.NewNop())
	mr.SetError("ERR storage down")

	_, err := uc.Load(context.Background(), vid, "example.com")
	assert.True(t, apperrors.Is(err, apperrors.ErrStorage))
}

package secrets

import (
	"FunnelRouter/entity"
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

type countingStore struct {
	calls  atomic.Int32
	values map[string]string
}

func (s *countingStore) Secret(ctx context.Context, name string) (string, error) {
	s.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("expected a bounded context")
	}
	return Static(s.values).Secret(ctx, name)
}

func TestCachedReadsBackendOnce(t *testing.T) {
	store := &countingStore{values: map[string]string{"meta-app-secret": "s3cr3t"}}
	c := NewCached(store, 0, time.Second)

	for i := 0; i < 3; i++ {
		v, err := c.Secret(context.Background(), "meta-app-secret")
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", v)
	}
	assert.EqualValues(t, 1, store.calls.Load())
}

func TestCachedInvalidate(t *testing.T) {
	store := &countingStore{values: map[string]string{"wa-token": "old"}}
	c := NewCached(store, time.Hour, time.Second)

	v, _ := c.Secret(context.Background(), "wa-token")
	assert.Equal(t, "old", v)

	store.values["wa-token"] = "new"
	v, _ = c.Secret(context.Background(), "wa-token")
	assert.Equal(t, "old", v)

	c.Invalidate("wa-token")
	v, _ = c.Secret(context.Background(), "wa-token")
	assert.Equal(t, "new", v)
}

func TestStaticMissing(t *testing.T) {
	_, err := Static{}.Secret(context.Background(), "nope")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestResourceName(t *testing.T) {
	s := &SecretManager{projectID: "acme"}
	assert.Equal(t, "projects/acme/secrets/wa-token/versions/latest", s.resourceName("wa-token"))
	assert.Equal(t, "projects/x/secrets/y/versions/3", s.resourceName("projects/x/secrets/y/versions/3"))
}

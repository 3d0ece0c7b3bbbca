package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "oncall:", nil)
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "schedule:live", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "schedule:live", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "schedule:live:*"))

	gen, err := repo.Counter(ctx, "schedule-gen:live")
	assert.NoError(t, err)
	assert.Zero(t, gen)
	gen, err = repo.Incr(ctx, "schedule-gen:live")
	assert.NoError(t, err)
	assert.Zero(t, gen)
}

package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storycraft/social-interaction/internal/platform/db"
	"github.com/storycraft/social-interaction/services/social/migrations"
)

// openTestPool connects to TEST_DATABASE_URL, applying migrations first.
// Tests using it are skipped when the variable is unset.
func openTestPool(t *testing.T) *db.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, migrations.Up(dsn, zap.NewNop()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool := db.New(dsn)
	require.NoError(t, pool.Initialize(ctx))
	t.Cleanup(pool.Shutdown)
	return pool
}

func freshTarget() Target {
	return Target{ContentType: "story", ContentID: uuid.NewString()}
}

func TestPostgres_CommentLifecycle(t *testing.T) {
	pool := openTestPool(t)
	s := NewPostgresCommentStore(pool)
	ctx := context.Background()
	target := freshTarget()
	user := uuid.NewString()

	c1, err := s.Create(ctx, NewComment{UserID: user, Target: target, Content: "root"})
	require.NoError(t, err)
	assert.Equal(t, c1.CreatedAt, c1.UpdatedAt)
	assert.Nil(t, c1.ParentID)

	r1, err := s.Create(ctx, NewComment{UserID: user, Target: target, Content: "reply", ParentID: &c1.ID})
	require.NoError(t, err)
	require.NotNil(t, r1.ParentID)
	assert.Equal(t, c1.ID, *r1.ParentID)

	top, err := s.ListForContent(ctx, ContentFilter{Target: target, Page: Page{Limit: 50}})
	require.NoError(t, err)
	assert.Equal(t, []string{c1.ID}, ids(top))

	all, err := s.ListForContent(ctx, ContentFilter{Target: target, Page: Page{Limit: 50}, IncludeReplies: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	replies, err := s.Replies(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{r1.ID}, ids(replies))

	n, err := s.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	updated, found, err := s.Update(ctx, c1.ID, "edited")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "edited", updated.Content)
	assert.True(t, c1.CreatedAt.Equal(updated.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(c1.UpdatedAt))

	_, found, err = s.Update(ctx, uuid.NewString(), "x")
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err := s.Delete(ctx, c1.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err = s.GetByID(ctx, r1.ID)
	require.NoError(t, err)
	assert.False(t, found, "replies cascade with their parent")

	deleted, err = s.Delete(ctx, c1.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPostgres_ConcurrentDuplicateReactionsConverge(t *testing.T) {
	pool := openTestPool(t)
	s := NewPostgresReactionStore(pool)
	ctx := context.Background()
	k := ReactionKey{UserID: uuid.NewString(), Target: freshTarget(), ReactionType: "like"}

	const workers = 10
	var wg sync.WaitGroup
	got := make([]Reaction, workers)
	created := make([]bool, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], created[i], errs[i] = s.Create(ctx, k)
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, got[0].ID, got[i].ID)
		if created[i] {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	n, err := s.Count(ctx, k.Target, "like")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := s.ListByUser(ctx, k.UserID, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	deleted, err := s.Delete(ctx, k)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, found, err := s.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, found)
}

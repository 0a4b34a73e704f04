package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/database"
	"github.com/saxon-wu/living/internal/jobs/tasks"
	"github.com/saxon-wu/living/internal/models"
	"github.com/saxon-wu/living/internal/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Options{URL: "sqlite://" + filepath.Join(t.TempDir(), "living.db")})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })

	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username, PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func content(text string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{"blocks": []map[string]string{{"type": "paragraph", "text": text}}})
	return raw
}

func firstPage() pagination.Params {
	return pagination.Params{Page: 1, PageSize: 10}
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), err.Error())
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []tasks.CommentNotification
}

func (n *recordingNotifier) NotifyComment(_ context.Context, payload tasks.CommentNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, payload)
	return nil
}

func (n *recordingNotifier) all() []tasks.CommentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]tasks.CommentNotification(nil), n.sent...)
}

// A publishes, B likes twice and favorites, A cannot favorite their own article.
func TestLikeAndFavoriteScenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	articles := NewArticleService(db, ArticleOptions{})

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	created, err := articles.Create(ctx, alice, CreateArticleInput{Title: "Hello", Content: content("hi")})
	require.NoError(t, err)
	assert.Equal(t, models.ArticlePublished, created.Status)
	assert.True(t, created.IsPublic)

	liked, err := articles.Like(ctx, bob, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), liked.LikesCount)
	assert.True(t, liked.Liked)

	unliked, err := articles.Like(ctx, bob, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unliked.LikesCount)
	assert.False(t, unliked.Liked)

	favorited, err := articles.Favorite(ctx, bob, created.UUID)
	require.NoError(t, err)
	assert.True(t, favorited.Favorited)
	assert.Equal(t, int64(1), favorited.FavoritesCount)

	page, err := articles.Favorites(ctx, nil, bob.UUID, firstPage())
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, created.UUID, page.Items[0].UUID)

	_, err = articles.Favorite(ctx, alice, created.UUID)
	assertKind(t, err, apperr.KindForbidden)
}

func TestOwnershipGuard(t *testing.T) {
	owner := &models.User{ID: 1}

	assert.NoError(t, ensureOwnership(owner, 1))
	assertKind(t, ensureOwnership(nil, 1), apperr.KindUnauthorized)
	assertKind(t, ensureOwnership(&models.User{ID: 2}, 1), apperr.KindForbidden)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 10))
	assert.Equal(t, "héll…", excerpt("héllo world", 4))
}

func TestSanitizeStripsMarkup(t *testing.T) {
	assert.Equal(t, "hello", sanitize("  <b>hello</b><script>alert(1)</script> "))
}

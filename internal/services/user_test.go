package services

import (
	"context"
	"testing"
	"time"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/auth"
	"github.com/saxon-wu/living/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tokens := auth.NewTokens("test-secret", time.Hour)
	svc := NewAuthService(db, tokens, "http://localhost:8080")

	user, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Len(t, user.UUID, 36)

	_, err = svc.Register(ctx, RegisterInput{Username: "alice", Password: "another one"})
	assertKind(t, err, apperr.KindConflict)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Password: "short"})
	assertKind(t, err, apperr.KindBadRequest)

	_, err = svc.Login(ctx, LoginInput{Username: "alice", Password: "wrong password"})
	assertKind(t, err, apperr.KindUnauthorized)

	_, err = svc.Login(ctx, LoginInput{Username: "nobody", Password: "correct horse"})
	assertKind(t, err, apperr.KindUnauthorized)

	result, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, int64(3600), result.ExpiresIn)
	assert.Equal(t, user.UUID, result.User.UUID)

	claims, err := tokens.Parse(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.UUID, claims.ID)
	assert.Equal(t, "alice", claims.Username)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	authSvc := NewAuthService(db, auth.NewTokens("test-secret", time.Hour), "")
	users := NewUserService(db, "", nil, nil)

	registered, err := authSvc.Register(ctx, RegisterInput{Username: "alice", Password: "first secret"})
	require.NoError(t, err)
	alice, err := users.FindByUUID(ctx, registered.UUID)
	require.NoError(t, err)

	err = users.ChangePassword(ctx, alice, ChangePasswordInput{OldPassword: "not it", NewPassword: "second secret"})
	assertKind(t, err, apperr.KindBadRequest)

	require.NoError(t, users.ChangePassword(ctx, alice, ChangePasswordInput{OldPassword: "first secret", NewPassword: "second secret"}))

	_, err = authSvc.Login(ctx, LoginInput{Username: "alice", Password: "first secret"})
	assertKind(t, err, apperr.KindUnauthorized)
	_, err = authSvc.Login(ctx, LoginInput{Username: "alice", Password: "second secret"})
	require.NoError(t, err)
}

func TestUserLookup(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserService(db, "", nil, nil)
	alice := createUser(t, db, "alice")
	createUser(t, db, "bob")

	found, err := users.FindOne(ctx, alice.UUID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)
	assert.Nil(t, found.Avatar)

	_, err = users.FindOne(ctx, "00000000-0000-0000-0000-000000000000")
	assertKind(t, err, apperr.KindNotFound)

	page, err := users.FindAll(ctx, firstPage())
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Meta.TotalItems)
	assert.Len(t, page.Items, 2)
}

func TestUpdateProfileAvatar(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	files := newTestFileService(t, db, nil)
	users := NewUserService(db, "http://cdn.test", files, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	image, err := files.Store(ctx, alice, "me.png", pngReader(t, 32, 32))
	require.NoError(t, err)

	_, err = users.UpdateProfile(ctx, bob, UpdateProfileInput{Avatar: &image.UUID})
	assertKind(t, err, apperr.KindForbidden)

	updated, err := users.UpdateProfile(ctx, alice, UpdateProfileInput{Avatar: &image.UUID})
	require.NoError(t, err)
	require.NotNil(t, updated.Avatar)
	assert.Equal(t, "http://cdn.test/v1/files/"+image.Filename, updated.Avatar.URL)

	none := ""
	cleared, err := users.UpdateProfile(ctx, alice, UpdateProfileInput{Avatar: &none})
	require.NoError(t, err)
	assert.Nil(t, cleared.Avatar)
}

func TestUserRemoveDeletesOwnedData(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	files := newTestFileService(t, db, nil)
	users := NewUserService(db, "", files, nil)
	articles := NewArticleService(db, ArticleOptions{})
	tags := NewTagService(db, nil)
	comments := NewCommentService(db, CommentOptions{})
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	image, err := files.Store(ctx, alice, "cover.png", pngReader(t, 16, 16))
	require.NoError(t, err)
	tag, err := tags.Create(ctx, alice, CreateTagInput{Name: "alice-tag"})
	require.NoError(t, err)
	article, err := articles.Create(ctx, alice, CreateArticleInput{Title: "Mine", Content: content("x"), Tags: []string{tag.UUID}, Cover: image.UUID})
	require.NoError(t, err)
	_, err = comments.Create(ctx, bob, article.UUID, CreateCommentInput{Content: "hi"})
	require.NoError(t, err)

	path, err := files.Open(ctx, image.Filename, zeroQuery)
	require.NoError(t, err)

	require.NoError(t, users.Remove(ctx, alice))

	for _, model := range []any{&models.Article{}, &models.Tag{}, &models.File{}, &models.Comment{}} {
		var n int64
		require.NoError(t, db.Unscoped().Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T", model)
	}
	var joins int64
	require.NoError(t, db.Table("article_tags").Count(&joins).Error)
	assert.Zero(t, joins)

	assert.NoFileExists(t, path)

	_, err = users.FindOne(ctx, alice.UUID)
	assertKind(t, err, apperr.KindNotFound)
	_, err = users.FindOne(ctx, bob.UUID)
	require.NoError(t, err)
}

func TestUserRemoveMovesForeignChildTagsToRoot(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cache := &countingTreeCache{}
	users := NewUserService(db, "", nil, cache)
	tags := NewTagService(db, cache)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	programming, err := tags.Create(ctx, alice, CreateTagInput{Name: "programming"})
	require.NoError(t, err)
	lang, err := tags.Create(ctx, bob, CreateTagInput{Name: "go", Parent: programming.UUID})
	require.NoError(t, err)
	assert.NotZero(t, lang.ParentID)

	forest, err := tags.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	require.NotNil(t, cache.nodes)
	invalidations := cache.invalidated

	require.NoError(t, users.Remove(ctx, alice))
	assert.Equal(t, invalidations+1, cache.invalidated)

	moved, err := tags.FindOne(ctx, lang.UUID)
	require.NoError(t, err)
	assert.Zero(t, moved.ParentID)

	_, err = tags.FindOne(ctx, programming.UUID)
	assertKind(t, err, apperr.KindNotFound)

	forest, err = tags.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, "go", forest[0].Name)
	assert.Nil(t, forest[0].Children)
}

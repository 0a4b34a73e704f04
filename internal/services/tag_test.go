package services

import (
	"context"
	"testing"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTreeCache struct {
	nodes       []*models.TagNode
	sets        int
	invalidated int
}

func (c *countingTreeCache) Get(context.Context) ([]*models.TagNode, bool, error) {
	return c.nodes, c.nodes != nil, nil
}

func (c *countingTreeCache) Set(_ context.Context, nodes []*models.TagNode) error {
	c.nodes = nodes
	c.sets++
	return nil
}

func (c *countingTreeCache) Invalidate(context.Context) error {
	c.nodes = nil
	c.invalidated++
	return nil
}

func TestTagHierarchy(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cache := &countingTreeCache{}
	tags := NewTagService(db, cache)
	alice := createUser(t, db, "alice")

	root, err := tags.Create(ctx, alice, CreateTagInput{Name: "programming"})
	require.NoError(t, err)
	lang, err := tags.Create(ctx, alice, CreateTagInput{Name: "go", Parent: root.UUID})
	require.NoError(t, err)
	_, err = tags.Create(ctx, alice, CreateTagInput{Name: "generics", Parent: lang.UUID})
	require.NoError(t, err)
	_, err = tags.Create(ctx, alice, CreateTagInput{Name: "cooking"})
	require.NoError(t, err)

	forest, err := tags.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, forest, 2)
	assert.Equal(t, "programming", forest[0].Name)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "go", forest[0].Children[0].Name)
	require.Len(t, forest[0].Children[0].Children, 1)
	assert.Equal(t, "generics", forest[0].Children[0].Children[0].Name)
	assert.Nil(t, forest[1].Children)
	assert.Equal(t, 1, cache.sets)

	_, err = tags.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "second read is served from the cache")

	_, err = tags.Create(ctx, alice, CreateTagInput{Name: "go"})
	assertKind(t, err, apperr.KindConflict)

	_, err = tags.Create(ctx, alice, CreateTagInput{Name: "orphan", Parent: "6f1c2b7e-5a0d-4d8e-9c3b-1e2f3a4b5c6d"})
	assertKind(t, err, apperr.KindBadRequest)
}

func TestTagUpdateRejectsCycles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tags := NewTagService(db, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	root, err := tags.Create(ctx, alice, CreateTagInput{Name: "root"})
	require.NoError(t, err)
	child, err := tags.Create(ctx, alice, CreateTagInput{Name: "child", Parent: root.UUID})
	require.NoError(t, err)

	_, err = tags.Update(ctx, alice, root.UUID, UpdateTagInput{Parent: &child.UUID})
	assertKind(t, err, apperr.KindBadRequest)

	_, err = tags.Update(ctx, alice, root.UUID, UpdateTagInput{Parent: &root.UUID})
	assertKind(t, err, apperr.KindBadRequest)

	name := "renamed"
	_, err = tags.Update(ctx, bob, root.UUID, UpdateTagInput{Name: &name})
	assertKind(t, err, apperr.KindForbidden)

	top := ""
	moved, err := tags.Update(ctx, alice, child.UUID, UpdateTagInput{Parent: &top, Name: &name})
	require.NoError(t, err)
	assert.Zero(t, moved.ParentID)
	assert.Equal(t, "renamed", moved.Name)

	forest, err := tags.Tree(ctx)
	require.NoError(t, err)
	assert.Len(t, forest, 2)
}

func TestTagRemove(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cache := &countingTreeCache{}
	tags := NewTagService(db, cache)
	articles := NewArticleService(db, ArticleOptions{})
	alice := createUser(t, db, "alice")

	parent, err := tags.Create(ctx, alice, CreateTagInput{Name: "parent"})
	require.NoError(t, err)
	leaf, err := tags.Create(ctx, alice, CreateTagInput{Name: "leaf", Parent: parent.UUID})
	require.NoError(t, err)

	article, err := articles.Create(ctx, alice, CreateArticleInput{Title: "Tagged", Content: content("x"), Tags: []string{leaf.UUID}})
	require.NoError(t, err)

	counted, err := tags.FindOne(ctx, leaf.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counted.ArticlesCount)

	assertKind(t, tags.Remove(ctx, alice, parent.UUID), apperr.KindConflict)

	invalidations := cache.invalidated
	require.NoError(t, tags.Remove(ctx, alice, leaf.UUID))
	assert.Equal(t, invalidations+1, cache.invalidated)

	require.NoError(t, tags.Remove(ctx, alice, parent.UUID))

	view, err := articles.FindOne(ctx, alice, article.UUID)
	require.NoError(t, err)
	assert.Empty(t, view.Tags)

	page, err := tags.FindAll(ctx, firstPage())
	require.NoError(t, err)
	assert.Zero(t, page.Meta.TotalItems)
	assert.Empty(t, page.Items)
}

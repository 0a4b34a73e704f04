package handlers

import (
	"github.com/saxon-wu/living/internal/auth"
	"github.com/saxon-wu/living/internal/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Health   *HealthHandler
	Auth     *AuthHandler
	Users    *UserHandler
	Articles *ArticleHandler
	Comments *CommentHandler
	Replies  *ReplyHandler
	Tags     *TagHandler
	Files    *FileHandler
}

// Register mounts every route on v1. Reads resolve an optional bearer token so
// owners can see their own drafts; writes require one.
func Register(v1 *echo.Group, h Handlers, tokens *auth.Tokens, users middleware.UserLoader) {
	required := middleware.JWTAuth(tokens, users)
	optional := middleware.OptionalJWTAuth(tokens, users)

	v1.GET("/health", h.Health.Check)

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.GET("/profile", h.Auth.Profile, required)

	userGroup := v1.Group("/users")
	userGroup.GET("", h.Users.List)
	userGroup.GET("/:uuid", h.Users.Get)
	userGroup.GET("/:uuid/favorites", h.Users.Favorites, optional)
	userGroup.PATCH("/me", h.Users.UpdateProfile, required)
	userGroup.PUT("/me/password", h.Users.ChangePassword, required)
	userGroup.DELETE("/me", h.Users.Remove, required)

	articleGroup := v1.Group("/articles")
	articleGroup.GET("", h.Articles.List, optional)
	articleGroup.GET("/:uuid", h.Articles.Get, optional)
	articleGroup.POST("", h.Articles.Create, required)
	articleGroup.PATCH("/:uuid", h.Articles.Update, required)
	articleGroup.DELETE("/:uuid", h.Articles.Delete, required)
	articleGroup.POST("/:uuid/restore", h.Articles.Restore, required)
	articleGroup.POST("/:uuid/like", h.Articles.Like, required)
	articleGroup.POST("/:uuid/favorite", h.Articles.Favorite, required)
	articleGroup.GET("/:uuid/comments", h.Comments.List, optional)
	articleGroup.POST("/:uuid/comments", h.Comments.Create, required)

	v1.GET("/admin/articles", h.Articles.Mine, required)

	commentGroup := v1.Group("/comments")
	commentGroup.GET("/:uuid", h.Comments.Get, optional)
	commentGroup.DELETE("/:uuid", h.Comments.Delete, required)
	commentGroup.POST("/:uuid/like", h.Comments.Like, required)
	commentGroup.GET("/:uuid/replies", h.Comments.Replies, optional)
	commentGroup.POST("/:uuid/replies", h.Comments.Reply, required)

	replyGroup := v1.Group("/replies")
	replyGroup.GET("/:uuid", h.Replies.Get, optional)
	replyGroup.DELETE("/:uuid", h.Replies.Delete, required)
	replyGroup.POST("/:uuid/restore", h.Replies.Restore, required)
	replyGroup.POST("/:uuid/like", h.Replies.Like, required)

	tagGroup := v1.Group("/tags")
	tagGroup.GET("", h.Tags.List)
	tagGroup.GET("/tree", h.Tags.Tree)
	tagGroup.GET("/:uuid", h.Tags.Get)
	tagGroup.POST("", h.Tags.Create, required)
	tagGroup.PATCH("/:uuid", h.Tags.Update, required)
	tagGroup.DELETE("/:uuid", h.Tags.Delete, required)

	fileGroup := v1.Group("/files")
	fileGroup.POST("", h.Files.Upload, required)
	fileGroup.GET("/placeholder", h.Files.Placeholder)
	fileGroup.GET("/:filename", h.Files.Get)
	fileGroup.DELETE("/:filename", h.Files.Delete, required)
}

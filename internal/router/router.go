package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"zheer/internal/handlers"
	"zheer/internal/middleware"
	"zheer/internal/models"
	"zheer/internal/services"
)

// RegisterRoutes wires services, middleware and handlers onto the engine.
func RegisterRoutes(r *gin.Engine, database *gorm.DB) {
	tokens := services.NewTokenService()
	mail := services.NewMailService()
	identity := services.NewIdentityService(database, tokens, mail)
	follows := services.NewFollowService(database)
	contents := services.NewContentService(database)

	authHandler := handlers.NewAuthHandler(identity)
	userHandler := handlers.NewUserHandler(identity, follows, contents)
	postHandler := handlers.NewPostHandler(contents)

	r.Use(middleware.SessionNonce())
	r.Use(middleware.Authenticate(identity))

	// 账号生命周期 (Account lifecycle)
	r.POST("/signup", authHandler.Register)
	r.POST("/password/forgot", authHandler.ForgotPassword)
	r.POST("/password/reset", authHandler.ResetPassword)

	account := r.Group("/")
	account.Use(middleware.AuthRequired())
	{
		account.GET("/confirm/:token", authHandler.Confirm)
		account.POST("/confirm/resend", authHandler.ResendConfirmation)
		account.POST("/password/change", authHandler.ChangePassword)
		account.PUT("/profile", authHandler.EditProfile)
	}

	// API v1: unconfirmed accounts are rejected everywhere here, matching
	// the account lifecycle routes above being the only way out.
	api := r.Group("/api/v1")
	api.Use(middleware.RequireConfirmed())
	{
		api.GET("/token", authHandler.Token)

		api.GET("/users/:id", userHandler.GetUser)
		api.GET("/users/:id/posts/", userHandler.UserPosts)
		api.GET("/users/:id/timeline/", userHandler.Timeline)
		api.GET("/users/:id/followers/", userHandler.Followers)
		api.GET("/users/:id/followed/", userHandler.Followed)
		api.PUT("/users/:id/profile", middleware.AdminRequired(), authHandler.EditProfileAdmin)

		follow := api.Group("/")
		follow.Use(middleware.AuthRequired(), middleware.PermissionRequired(models.PermissionFollow))
		{
			follow.POST("/users/:id/follow", userHandler.Follow)
			follow.DELETE("/users/:id/follow", userHandler.Unfollow)
		}

		api.GET("/posts/", postHandler.ListPosts)
		api.POST("/posts/", middleware.AuthRequired(), middleware.PermissionRequired(models.PermissionPostArticles), postHandler.CreatePost)
		api.GET("/posts/:id", postHandler.GetPost)
		api.PUT("/posts/:id", middleware.AuthRequired(), postHandler.UpdatePost)
		api.DELETE("/posts/:id", middleware.AuthRequired(), postHandler.DeletePost)
		api.PUT("/posts/:id/moderate", middleware.AuthRequired(), postHandler.Moderate)

		api.GET("/posts/:id/comments/", postHandler.ListComments)
		api.POST("/posts/:id/comments/", middleware.AuthRequired(), middleware.PermissionRequired(models.PermissionComment), postHandler.CreateComment)
		api.GET("/posts/:id/comments/:cid", postHandler.GetComment)
	}
}

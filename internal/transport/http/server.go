package http

import (
	"github.com/gin-gonic/gin"

	"docinsight/internal/bootstrap"
	"docinsight/internal/transport/http/handler"
	"docinsight/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())
	router.MaxMultipartMemory = 8 << 20

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	registerAPI(router.Group("/api/v1"), app.Config.Auth.JWTSecret, Handlers{
		Auth:          handler.NewAuthHandler(app.Auth),
		Documents:     handler.NewDocumentHandler(app.Documents, app.Config.Storage.MaxUploadBytes),
		Conversations: handler.NewConversationHandler(app.Conversations),
	})
	return router
}

type Handlers struct {
	Auth          *handler.AuthHandler
	Documents     *handler.DocumentHandler
	Conversations *handler.ConversationHandler
}

func registerAPI(v1 *gin.RouterGroup, jwtSecret string, h Handlers) {
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.GET("/me", middleware.AuthJWT(jwtSecret), h.Auth.Me)

	docGroup := v1.Group("/documents")
	docGroup.Use(middleware.AuthJWT(jwtSecret))
	docGroup.POST("", h.Documents.Upload)
	docGroup.GET("", h.Documents.List)
	docGroup.GET("/:id", h.Documents.Get)
	docGroup.DELETE("/:id", h.Documents.Delete)
	docGroup.POST("/:id/analyze", h.Documents.Analyze)
	docGroup.GET("/:id/conversations", h.Conversations.ListByDocument)

	convGroup := v1.Group("/conversations")
	convGroup.Use(middleware.AuthJWT(jwtSecret))
	convGroup.POST("", h.Conversations.Create)
	convGroup.GET("/:id/messages", h.Conversations.ListMessages)
	convGroup.POST("/:id/messages", h.Conversations.Ask)
}

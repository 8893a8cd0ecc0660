package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/chatdesk/internal/authorization"
	cascadedomain "github.com/smallbiznis/chatdesk/internal/cascade/domain"
	"github.com/smallbiznis/chatdesk/internal/config"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	messagedomain "github.com/smallbiznis/chatdesk/internal/message/domain"
	"github.com/smallbiznis/chatdesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/chatdesk/internal/observability/logger"
	obstracing "github.com/smallbiznis/chatdesk/internal/observability/tracing"
	pipelinedomain "github.com/smallbiznis/chatdesk/internal/pipeline/domain"
	unreaddomain "github.com/smallbiznis/chatdesk/internal/unread/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
		QuietRoutes:     obsCfg.QuietRoutes,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	metricsPath := obsCfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	log             *zap.Logger
	authzSvc        authorization.Service
	pipelineSvc     pipelinedomain.Service
	conversationSvc conversationdomain.Service
	messageSvc      messagedomain.Service
	unreadSvc       unreaddomain.Service
	cascadeSvc      cascadedomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Log             *zap.Logger
	AuthzSvc        authorization.Service
	PipelineSvc     pipelinedomain.Service
	ConversationSvc conversationdomain.Service
	MessageSvc      messagedomain.Service
	UnreadSvc       unreaddomain.Service
	CascadeSvc      cascadedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		log:             p.Log.Named("http.server"),
		authzSvc:        p.AuthzSvc,
		pipelineSvc:     p.PipelineSvc,
		conversationSvc: p.ConversationSvc,
		messageSvc:      p.MessageSvc,
		unreadSvc:       p.UnreadSvc,
		cascadeSvc:      p.CascadeSvc,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:token", s.HandleWebhook)
}

func (s *Server) registerAPIRoutes() {
	account := s.engine.Group("/v1/accounts/:account_id", AccountScope(), ActorContext())
	{
		account.DELETE("", s.RequirePermission(authorization.ObjectAccount, authorization.ActionDelete), s.DeleteAccount)
		account.GET("/orphans", s.RequirePermission(authorization.ObjectAccount, authorization.ActionRead), s.VerifyNoOrphans)

		conversations := account.Group("/conversations")
		conversations.GET("", s.RequirePermission(authorization.ObjectConversation, authorization.ActionRead), s.ListConversations)
		conversations.POST("/:id/read", s.RequirePermission(authorization.ObjectConversation, authorization.ActionWrite), s.MarkConversationRead)
		conversations.GET("/:id/messages", s.RequirePermission(authorization.ObjectMessage, authorization.ActionRead), s.ListMessages)
		conversations.POST("/:id/messages", s.RequirePermission(authorization.ObjectMessage, authorization.ActionWrite), s.SendMessage)
	}
}

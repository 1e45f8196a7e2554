// Package main runs the client management HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clientdesk/backend/config"
	"github.com/clientdesk/backend/internal/auth"
	"github.com/clientdesk/backend/internal/bookings"
	"github.com/clientdesk/backend/internal/calendarfeed"
	"github.com/clientdesk/backend/internal/civiltime"
	"github.com/clientdesk/backend/internal/contacts"
	"github.com/clientdesk/backend/internal/dashboard"
	"github.com/clientdesk/backend/internal/groups"
	"github.com/clientdesk/backend/internal/middleware"
	"github.com/clientdesk/backend/internal/packages"
	"github.com/clientdesk/backend/internal/reminders"
	"github.com/clientdesk/backend/pkg/database"
	"github.com/clientdesk/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	cal := civiltime.New(cfg.Schedule.UTCOffsetMinutes, cfg.Schedule.WeekStart)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Contacts
	contactRepo := contacts.NewRepository()
	contactSvc := contacts.NewService(pool, contactRepo, logger)
	contactHandler := contacts.NewHandler(contactSvc, logger)

	// Reminders
	reminderRepo := reminders.NewRepository()
	policy := reminders.Policy{
		PreSessionLeads: cfg.Schedule.PreSessionLeads,
		FollowUpDelay:   cfg.Schedule.FollowUpDelay,
	}
	scheduler := reminders.NewScheduler(reminderRepo, policy, logger)

	// Packages
	packageRepo := packages.NewRepository()
	packageSvc := packages.NewService(pool, packageRepo, contactRepo, cal, logger)
	packageHandler := packages.NewHandler(packageSvc, logger)

	// Bookings
	bookingRepo := bookings.NewRepository()
	bookingSvc := bookings.NewService(pool, bookingRepo, scheduler, contactRepo, cal, logger)
	bookingSvc.SetPackageCreator(packageSvc)
	bookingHandler := bookings.NewHandler(bookingSvc, logger)

	// Group bookings
	groupRepo := groups.NewRepository()
	groupSvc := groups.NewService(pool, groupRepo, cal, logger)
	groupHandler := groups.NewHandler(groupSvc, cfg.Schedule.LookAheadDays, logger)

	// Dashboard
	dashboardSvc := dashboard.NewService(pool, bookingRepo, reminderRepo, groupRepo, cal, cfg.Schedule.LookAheadDays, logger)
	dashboardHandler := dashboard.NewHandler(dashboardSvc, logger)

	// Calendar feed
	feedSvc := calendarfeed.NewService(pool, bookingRepo, groupRepo, cal, cfg.Schedule.LookAheadDays, logger)
	feedHandler := calendarfeed.NewHandler(feedSvc, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Calendar feed (token-less subscription URL)
	router.GET("/calendar.ics", feedHandler.Feed)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Contacts
		api.GET("/contacts", contactHandler.List)
		api.POST("/contacts", contactHandler.Create)
		api.GET("/contacts/:id", contactHandler.Get)
		api.PATCH("/contacts/:id", contactHandler.Update)
		api.POST("/contacts/:id/participants", contactHandler.AddParticipant)
		api.GET("/contacts/:id/packages", packageHandler.ListByContact)

		// Bookings
		api.POST("/bookings", bookingHandler.Create)
		api.POST("/bookings/quick-add", bookingHandler.QuickAdd)
		api.GET("/bookings/:variant/:id", bookingHandler.Get)
		api.PATCH("/bookings/:variant/:id/accept", bookingHandler.Accept)
		api.PATCH("/bookings/:variant/:id/cancel", bookingHandler.Cancel)
		api.PATCH("/bookings/:variant/:id/no-show", bookingHandler.MarkNoShow)
		api.PATCH("/bookings/:variant/:id/complete", bookingHandler.Complete)

		// Packages
		api.POST("/packages", packageHandler.Create)
		api.GET("/packages/:id", packageHandler.Get)
		api.PATCH("/packages/:id", packageHandler.Update)
		api.POST("/packages/:id/payments", packageHandler.LogPayment)
		api.GET("/packages/:id/payments", packageHandler.ListPayments)

		// Group bookings
		api.GET("/group-bookings", groupHandler.List)
		api.POST("/group-bookings", groupHandler.Create)
		api.GET("/group-bookings/:id", groupHandler.Get)
		api.PATCH("/group-bookings/:id", groupHandler.SetCapacity)
		api.POST("/group-bookings/:id/signups", groupHandler.Admit)
		api.PATCH("/group-signups/:id/paid", groupHandler.SetSignupPaid)

		// Dashboard
		api.GET("/dashboard", dashboardHandler.Snapshot)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

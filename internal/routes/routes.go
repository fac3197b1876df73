package routes

import (
	"time"

	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/config"
	"autorepair-shop-server/internal/handlers"
	"autorepair-shop-server/internal/mailer"
	"autorepair-shop-server/internal/middleware"
	"autorepair-shop-server/internal/policy"
	"autorepair-shop-server/internal/services"
	"autorepair-shop-server/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps carries the shared collaborators the routes are built from.
// Redis, Storage and Notifier may be nil.
type Deps struct {
	DB         *gorm.DB
	Config     *config.Config
	Redis      redis.Cmdable
	Notifier   *mailer.Notifier
	Storage    storage.Storage
	Authorizer *policy.Authorizer
	Now        clock.Func
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, d Deps) {
	cfg := d.Config
	db := d.DB
	authz := d.Authorizer
	if authz == nil {
		authz = policy.New(nil)
	}
	now := d.Now
	if now == nil {
		now = clock.Real()
	}
	loc := cfg.ShopLocation
	if loc == nil {
		loc = time.UTC
	}

	// Services
	bookingService := services.NewBookingService(db, services.BookingOptions{
		Now:          now,
		Location:     loc,
		Notifier:     d.Notifier,
		Authorizer:   authz,
		ReminderLead: cfg.Reminders.Lead,
	})
	reviewService := services.NewReviewService(db, now, authz)

	// Handlers
	authHandler := handlers.NewAuthHandler(db, cfg, d.Notifier, now)
	userHandler := handlers.NewUserHandler(db)
	serviceHandler := handlers.NewServiceHandler(db, reviewService)
	bookingHandler := handlers.NewBookingHandler(bookingService)
	reviewHandler := handlers.NewReviewHandler(db, reviewService)
	projectHandler := handlers.NewProjectHandler(db, d.Storage)
	blogHandler := handlers.NewBlogHandler(db, now)
	contactHandler := handlers.NewContactHandler(db, d.Notifier, now)
	uploadHandler := handlers.NewUploadHandler(d.Storage, cfg.Storage.Folder)
	adminHandler := handlers.NewAdminHandler(db, now, loc)

	auth := middleware.AuthMiddleware(cfg, db)
	require := func(action policy.Action) gin.HandlerFunc {
		return middleware.Require(authz, action)
	}

	api := router.Group("/api")
	api.Use(middleware.RateLimit(d.Redis, cfg.RateLimit.Window, cfg.RateLimit.Max))

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		authRoutes.POST("/logout", authHandler.Logout)

		me := authRoutes.Group("", auth)
		me.GET("/me", authHandler.GetProfile)
		me.PUT("/me", authHandler.UpdateProfile)
		me.PUT("/change-password", authHandler.ChangePassword)
	}

	userRoutes := api.Group("/users", auth, require(policy.UserManage))
	{
		userRoutes.GET("/technicians", userHandler.GetTechnicians)
		userRoutes.POST("", userHandler.CreateUser)
		userRoutes.GET("", userHandler.GetUsers)
		userRoutes.GET("/:id", userHandler.GetUserByID)
		userRoutes.PUT("/:id", userHandler.UpdateUser)
		userRoutes.DELETE("/:id", userHandler.DeleteUser)
	}

	serviceRoutes := api.Group("/services")
	{
		serviceRoutes.GET("", serviceHandler.GetServices)
		serviceRoutes.GET("/:id", serviceHandler.GetService)

		admin := serviceRoutes.Group("", auth, require(policy.ServiceManage))
		admin.GET("/admin/all", serviceHandler.GetAllServices)
		admin.POST("", serviceHandler.CreateService)
		admin.PUT("/:id", serviceHandler.UpdateService)
		admin.DELETE("/:id", serviceHandler.DeleteService)
	}

	bookingRoutes := api.Group("/bookings")
	{
		bookingRoutes.GET("/available-slots", bookingHandler.GetAvailableSlots)

		// Ownership and assignment rules are checked by the booking service.
		private := bookingRoutes.Group("", auth)
		private.POST("", require(policy.BookingCreate), bookingHandler.CreateBooking)
		private.GET("", require(policy.BookingList), bookingHandler.GetBookings)
		private.GET("/my-bookings", bookingHandler.GetMyBookings)
		private.GET("/technician", require(policy.BookingListAssigned), bookingHandler.GetTechnicianBookings)
		private.GET("/:id", bookingHandler.GetBooking)
		private.PUT("/:id/cancel", bookingHandler.CancelBooking)
		private.PUT("/:id/confirm", require(policy.BookingConfirm), bookingHandler.ConfirmBooking)
		private.PUT("/:id/assign", require(policy.BookingAssign), bookingHandler.AssignTechnician)
		private.PUT("/:id/status", bookingHandler.UpdateBookingStatus)
		private.POST("/:id/notes", bookingHandler.AddNote)
		private.PUT("/:id/rate", bookingHandler.RateBooking)
	}

	reviewRoutes := api.Group("/reviews")
	{
		reviewRoutes.GET("", reviewHandler.GetReviews)
		reviewRoutes.GET("/stats", reviewHandler.GetReviewStats)
		reviewRoutes.PUT("/:id/helpful", reviewHandler.MarkHelpful)

		private := reviewRoutes.Group("", auth)
		private.POST("", reviewHandler.CreateReview)
		private.GET("/my-reviews", reviewHandler.GetMyReviews)

		admin := reviewRoutes.Group("", auth, require(policy.ReviewModerate))
		admin.GET("/admin/all", reviewHandler.GetAllReviews)
		admin.PUT("/:id/status", reviewHandler.UpdateReviewStatus)
		admin.PUT("/:id/respond", reviewHandler.RespondToReview)
		admin.DELETE("/:id", reviewHandler.DeleteReview)
	}

	projectRoutes := api.Group("/projects")
	{
		projectRoutes.GET("", projectHandler.GetProjects)
		projectRoutes.GET("/:id", projectHandler.GetProject)
		projectRoutes.POST("/:id/like", projectHandler.LikeProject)

		admin := projectRoutes.Group("", auth, require(policy.ProjectManage))
		admin.GET("/admin/all", projectHandler.GetAllProjects)
		admin.POST("", projectHandler.CreateProject)
		admin.PUT("/:id", projectHandler.UpdateProject)
		admin.DELETE("/:id", projectHandler.DeleteProject)
	}

	blogRoutes := api.Group("/blogs")
	{
		blogRoutes.GET("", blogHandler.GetBlogs)
		blogRoutes.GET("/:id", blogHandler.GetBlog)
		blogRoutes.POST("/:id/like", blogHandler.LikeBlog)
		blogRoutes.POST("/:id/comments", auth, require(policy.BlogComment), blogHandler.AddComment)

		admin := blogRoutes.Group("", auth, require(policy.BlogManage))
		admin.GET("/admin/all", blogHandler.GetAllBlogs)
		admin.GET("/admin/:id", blogHandler.GetBlogByID)
		admin.POST("", blogHandler.CreateBlog)
		admin.PUT("/:id", blogHandler.UpdateBlog)
		admin.DELETE("/:id", blogHandler.DeleteBlog)
		admin.PUT("/:id/comments/:commentId/approve", blogHandler.ApproveComment)
		admin.DELETE("/:id/comments/:commentId", blogHandler.DeleteComment)
	}

	contactRoutes := api.Group("/contacts")
	{
		contactRoutes.POST("", contactHandler.SubmitContact)
		contactRoutes.POST("/attachments", uploadHandler.UploadContactAttachment)

		admin := contactRoutes.Group("", auth, require(policy.ContactManage))
		admin.GET("", contactHandler.GetContacts)
		admin.GET("/:id", contactHandler.GetContact)
		admin.PUT("/:id/status", contactHandler.UpdateContactStatus)
		admin.POST("/:id/reply", contactHandler.ReplyToContact)
		admin.DELETE("/:id", contactHandler.DeleteContact)
	}

	uploadRoutes := api.Group("/uploads", auth, require(policy.UploadManage))
	{
		uploadRoutes.POST("", uploadHandler.UploadFile)
		uploadRoutes.DELETE("/*publicId", uploadHandler.DeleteFile)
	}

	api.GET("/admin/stats", auth, require(policy.StatsRead), adminHandler.GetStats)

	router.GET("/health", adminHandler.Health)
}

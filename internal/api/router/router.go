package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workflow/backend/config"
	"workflow/backend/internal/api/handler"
	"workflow/backend/internal/api/middleware"
	"workflow/backend/internal/model"
	"workflow/backend/pkg/jwt"
	"workflow/backend/pkg/redis"
)

// Setup builds the gin engine. rdb may be nil.
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	revoked middleware.RevocationChecker,
	rdb *redis.Client,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()

	// ── global middleware ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		// ── public ──
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", middleware.RateLimit(rdb, cfg.Auth.LoginRateLimit, time.Minute), h.Auth.Login)
		}

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, revoked, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// ── admin ──
			admin := authorized.Group("/admin", middleware.RoleAuth(model.RoleAdmin))
			{
				users := admin.Group("/users")
				{
					users.GET("", h.User.List)
					users.GET("/:id", h.User.Get)
					users.PUT("/:id", h.User.Update)
					users.DELETE("/:id", h.User.Delete)
					users.PUT("/:id/role", h.User.AssignRole)
					users.GET("/:id/timetable", h.Timetable.GetForUser)
				}

				projects := admin.Group("/projects")
				{
					projects.POST("", h.Project.Create)
					projects.GET("", h.Project.List)
					projects.GET("/status/overview", h.Project.Overview)
					projects.GET("/status/:status", h.Project.ListByStatus)
					projects.GET("/due-soon", h.Project.DueSoon)
					projects.GET("/overdue", h.Project.Overdue)
					projects.GET("/help", h.Project.NeedingHelp)
					projects.GET("/export", h.Export.ExportProjects)
					projects.GET("/:id", h.Project.Get)
					projects.PUT("/:id", h.Project.Update)
					projects.DELETE("/:id", h.Project.Delete)
					projects.PUT("/:id/status", h.Project.SetStatus)
					projects.POST("/:id/members/:userId", h.Project.AddMember)
					projects.DELETE("/:id/members/:userId", h.Project.RemoveMember)
				}
			}

			// ── project manager ──
			pm := authorized.Group("/pm", middleware.RoleAuth(model.RolePM))
			{
				pm.GET("/projects", h.Project.ListManaged)
				pm.GET("/projects/overview", h.Project.Overview)
				pm.GET("/projects/:id", h.Project.Get)
				pm.PUT("/projects/:id/status", h.Project.SetStatus)
				pm.POST("/projects/:id/members/:userId", h.Project.AddMember)
				pm.DELETE("/projects/:id/members/:userId", h.Project.RemoveMember)

				pm.GET("/students", h.User.ListStudents)
				pm.GET("/students/specialty/:specialty", h.User.ListStudents)
				pm.GET("/students/:id/timetable", h.Timetable.GetForUser)

				pm.GET("/profile", h.User.GetProfile)
				pm.PUT("/profile", h.User.UpdateProfile)
			}

			// ── student ──
			student := authorized.Group("/student", middleware.RoleAuth(model.RoleStudent))
			{
				student.GET("/profile", h.User.GetProfile)
				student.PUT("/profile", h.User.UpdateProfile)

				student.GET("/projects", h.Project.ListJoined)

				student.GET("/timetable", h.Timetable.GetMine)
				student.PUT("/timetable", h.Timetable.Replace)
				student.POST("/timetable/presign", h.Timetable.Presign)
				student.POST("/timetable/notify", h.Timetable.Notify)
				student.POST("/timetable/upload", h.Timetable.Upload)
			}
		}
	}

	return r
}

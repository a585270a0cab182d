package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/church-class-api/internal/handler"
	"github.com/noah-isme/church-class-api/internal/middleware"
	"github.com/noah-isme/church-class-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Classes          *handler.ClassHandler
	Levels           *handler.LevelHandler
	Sessions         *handler.SessionHandler
	Enrollments      *handler.EnrollmentHandler
	Attendance       *handler.AttendanceHandler
	BatchEnrollments *handler.BatchEnrollmentHandler
}

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

var managers = []string{
	string(models.RoleSuperAdmin),
	string(models.RoleAdmin),
	string(models.RoleStaff),
}

// Register mounts the class engine routes on api. Reads require a valid token;
// writes additionally require a class manager role.
func Register(api *gin.RouterGroup, tokens tokenValidator, h Handlers, logger *zap.Logger) {
	secured := api.Group("")
	secured.Use(middleware.JWT(tokens), middleware.WithResponseMeta())

	manage := middleware.RBAC(managers...)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(logger, action, resource)
	}

	classes := secured.Group("/classes")
	classes.GET("", h.Classes.List)
	classes.POST("", manage, audit("create", "class"), h.Classes.Create)
	classes.GET("/:classId", h.Classes.Get)
	classes.PUT("/:classId", manage, audit("update", "class"), h.Classes.Update)
	classes.DELETE("/:classId", manage, audit("delete", "class"), h.Classes.Delete)
	classes.GET("/:classId/summary", h.Classes.Summary)

	classes.GET("/:classId/levels", h.Levels.List)
	classes.POST("/:classId/levels", manage, audit("create", "level"), h.Levels.Add)
	classes.GET("/:classId/levels/next-order", h.Levels.NextOrder)
	classes.PUT("/:classId/levels/:levelId", manage, audit("update", "level"), h.Levels.Update)
	classes.PUT("/:classId/levels/:levelId/order", manage, audit("reorder", "level"), h.Levels.Reorder)
	classes.DELETE("/:classId/levels/:levelId", manage, audit("delete", "level"), h.Levels.Delete)

	classes.GET("/:classId/sessions", h.Sessions.ListForClass)
	classes.GET("/:classId/sessions/next-order", h.Sessions.NextOrderForClass)
	classes.POST("/:classId/sessions", manage, audit("create", "session"), h.Sessions.AddToClass)

	classes.GET("/:classId/enrollments", manage, h.Enrollments.ListByClass)
	classes.GET("/:classId/search-members", manage, h.BatchEnrollments.SearchMembers)
	classes.POST("/:classId/batch-enroll", manage, audit("batch_enroll", "enrollment"), h.BatchEnrollments.BatchEnroll)

	levels := secured.Group("/levels")
	levels.GET("/:levelId/sessions", h.Sessions.ListForLevel)
	levels.GET("/:levelId/sessions/next-order", h.Sessions.NextOrderForLevel)
	levels.POST("/:levelId/sessions", manage, audit("create", "session"), h.Sessions.AddToLevel)
	levels.GET("/:levelId/enrollments", manage, h.Enrollments.ListByLevel)

	sessions := secured.Group("/sessions")
	sessions.GET("/:sessionId", h.Sessions.Get)
	sessions.PUT("/:sessionId", manage, audit("update", "session"), h.Sessions.Update)
	sessions.DELETE("/:sessionId", manage, audit("delete", "session"), h.Sessions.Delete)
	sessions.POST("/:sessionId/meeting", manage, audit("ensure_meeting", "session"), h.Attendance.EnsureMeeting)
	sessions.GET("/:sessionId/attendance", manage, h.Attendance.Sheet)
	sessions.PUT("/:sessionId/attendance", manage, audit("record_attendance", "session"), h.Attendance.RecordSession)
	sessions.GET("/:sessionId/attendance/export", manage, h.Attendance.Export)

	secured.PUT("/meetings/:meetingId/participants", manage, audit("record_attendance", "meeting"), h.Attendance.RecordMeeting)

	enrollments := secured.Group("/enrollments")
	enrollments.POST("", manage, audit("enroll", "enrollment"), h.Enrollments.Enroll)
	enrollments.PATCH("/:id/status", manage, audit("update_status", "enrollment"), h.Enrollments.UpdateStatus)
	enrollments.DELETE("/:id", manage, audit("unenroll", "enrollment"), h.Enrollments.Unenroll)

	secured.GET("/members/:memberId/enrollments", middleware.RBAC(append(managers, middleware.Self("memberId"))...), h.Enrollments.ListByMember)
}

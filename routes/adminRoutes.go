package routes

import (
	"civicconnect-be/controllers"
	"civicconnect-be/middlewares"
	"civicconnect-be/models"

	"github.com/gin-gonic/gin"
)

// AdminRoutes sets up the admin dashboard and staff management routes
func AdminRoutes(r *gin.Engine, admin *controllers.AdminController) {
	group := r.Group("/api/admin")
	group.Use(middlewares.AuthMiddleware(), middlewares.RequireRoles(models.RoleAdmin))
	{
		group.GET("/dashboard", admin.GetDashboard)
		group.GET("/analytics", admin.GetAnalytics)
		group.POST("/employees", admin.CreateEmployee)
	}
}

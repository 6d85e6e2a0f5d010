package routes

import (
	"civicconnect-be/controllers"
	"civicconnect-be/middlewares"
	"civicconnect-be/models"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, issues *controllers.IssueController, createLimit int) {
	issue := r.Group("/api/issue")
	issue.Use(middlewares.AuthMiddleware())
	{
		issue.POST("/create", middlewares.IssueRateLimiter(createLimit), issues.CreateIssue)
		issue.GET("", issues.GetAllIssues)
		issue.GET("/mine", issues.GetIssuesByUser)
		issue.GET("/:id", issues.GetIssue)
		issue.PUT("/:id", issues.UpdateIssue)
		issue.DELETE("/:id", issues.DeleteIssue)

		issue.PUT("/:id/assign",
			middlewares.RequireRoles(models.RoleAdmin, models.RoleSupervisor, models.RoleCommissioner),
			issues.AssignIssue)
		issue.PUT("/:id/priority",
			middlewares.RequireRoles(models.RoleAdmin, models.RoleSupervisor, models.RoleCommissioner),
			issues.SetPriority)
		issue.POST("/:id/accept", middlewares.RequireEmployee(), issues.AcceptIssue)
		issue.POST("/:id/resolve", issues.ResolveIssue)
		issue.POST("/:id/close", issues.CloseIssue)

		issue.POST("/:id/vote", issues.HandleVoteOnIssue)
		issue.POST("/:id/comments", issues.AddComment)
		issue.GET("/:id/comments", issues.GetComments)
	}
}

package controllers

import (
	"net/http"
	"sort"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AdminController struct {
	users     repository.UserRepository
	issueColl *mongo.Collection
	voteColl  *mongo.Collection
}

func NewAdminController(users repository.UserRepository, issueColl, voteColl *mongo.Collection) *AdminController {
	return &AdminController{
		users:     users,
		issueColl: issueColl,
		voteColl:  voteColl,
	}
}

// resolutionStatsPipeline averages the stored resolution duration in days
// across resolved issues. The averaged path must match the Issue bson tag
// the resolution write populates.
var resolutionStatsPipeline = []bson.M{
	{
		"$match": bson.M{"status": string(models.StatusResolved)},
	},
	{
		"$group": bson.M{
			"_id":     nil,
			"avgDays": bson.M{"$avg": "$actualResolutionTime"},
			"count":   bson.M{"$sum": 1},
		},
	},
}

// GetDashboard returns the operational view: issue counts per status, how
// many assignments have blown their escalation deadline, and how long
// resolutions take on average.
func (ac *AdminController) GetDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now()

	statusPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$status",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"status": "$_id",
				"count":  1,
				"_id":    0,
			},
		},
	}

	statusCursor, err := ac.issueColl.Aggregate(ctx, statusPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get status counts"})
		return
	}
	defer statusCursor.Close(ctx)

	var issuesByStatus []bson.M
	if err := statusCursor.All(ctx, &issuesByStatus); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode status counts"})
		return
	}

	slaBreaches, err := ac.issueColl.CountDocuments(ctx, bson.M{
		"status":             bson.M{"$in": []string{string(models.StatusReported), string(models.StatusInProgress), string(models.StatusEscalated)}},
		"escalationDeadline": bson.M{"$lte": now},
	})
	if err != nil {
		slaBreaches = 0
	}

	resCursor, err := ac.issueColl.Aggregate(ctx, resolutionStatsPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get resolution stats"})
		return
	}
	defer resCursor.Close(ctx)

	var resStats []bson.M
	if err := resCursor.All(ctx, &resStats); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode resolution stats"})
		return
	}

	avgResolutionDays := 0.0
	resolvedCount := int32(0)
	if len(resStats) > 0 {
		if v, ok := resStats[0]["avgDays"].(float64); ok {
			avgResolutionDays = v
		}
		if v, ok := resStats[0]["count"].(int32); ok {
			resolvedCount = v
		}
	}

	escalated, err := ac.issueColl.CountDocuments(ctx, bson.M{
		"escalationHistory": bson.M{"$exists": true, "$ne": []interface{}{}},
	})
	if err != nil {
		escalated = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"issuesByStatus":    issuesByStatus,
		"slaBreaches":       slaBreaches,
		"avgResolutionDays": avgResolutionDays,
		"resolvedIssues":    resolvedCount,
		"everEscalated":     escalated,
		"generatedAt":       now,
	})
}

// GetAnalytics returns the public-facing aggregates: category breakdown,
// per-day volumes for the last week, and the most upvoted recent issues.
func (ac *AdminController) GetAnalytics(c *gin.Context) {
	ctx := c.Request.Context()

	categoryPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$category",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
	}

	categoryCursor, err := ac.issueColl.Aggregate(ctx, categoryPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get category analytics"})
		return
	}
	defer categoryCursor.Close(ctx)

	var issuesByCategory []bson.M
	if err := categoryCursor.All(ctx, &issuesByCategory); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode category analytics"})
		return
	}

	// Get last 7 days data
	var last7Days []gin.H
	for i := 6; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

		nextDate := date.AddDate(0, 0, 1)

		count, err := ac.issueColl.CountDocuments(ctx, bson.M{
			"createdAt": bson.M{
				"$gte": date,
				"$lt":  nextDate,
			},
		})
		if err != nil {
			count = 0
		}

		last7Days = append(last7Days, gin.H{
			"date":  date.Format("2006-01-02"),
			"count": count,
		})
	}

	// Top voted among the 50 most recent
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(50)

	cursor, err := ac.issueColl.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues for vote analysis"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode issues"})
		return
	}

	type IssueWithVoteCount struct {
		ID       primitive.ObjectID `json:"id"`
		Title    string             `json:"title"`
		Category string             `json:"category"`
		Votes    int64              `json:"votes"`
	}

	var issuesWithVotes []IssueWithVoteCount
	for _, issue := range issues {
		voteCount, err := ac.voteColl.CountDocuments(ctx, bson.M{"issue": issue.ID})
		if err != nil {
			voteCount = 0
		}

		issuesWithVotes = append(issuesWithVotes, IssueWithVoteCount{
			ID:       issue.ID,
			Title:    issue.Title,
			Category: string(issue.Category),
			Votes:    voteCount,
		})
	}

	sort.Slice(issuesWithVotes, func(i, j int) bool {
		return issuesWithVotes[i].Votes > issuesWithVotes[j].Votes
	})

	topVotedIssues := issuesWithVotes
	if len(issuesWithVotes) > 5 {
		topVotedIssues = issuesWithVotes[:5]
	}

	totalIssues, err := ac.issueColl.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalIssues = 0
	}

	totalVotes, err := ac.voteColl.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalVotes = 0
	}

	openIssues, err := ac.issueColl.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []string{string(models.StatusReported), string(models.StatusInProgress), string(models.StatusEscalated)}},
	})
	if err != nil {
		openIssues = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"issuesByCategory": issuesByCategory,
		"last7Days":        last7Days,
		"topVotedIssues":   topVotedIssues,
		"totalIssues":      totalIssues,
		"totalVotes":       totalVotes,
		"openIssues":       openIssues,
	})
}

// CreateEmployee provisions a staff account. Only admins reach this route;
// the role must sit on the escalation ladder.
func (ac *AdminController) CreateEmployee(c *gin.Context) {
	var input struct {
		Name        string   `json:"name" binding:"required,min=2,max=50"`
		Email       string   `json:"email" binding:"required,email"`
		Password    string   `json:"password" binding:"required,min=6"`
		Role        string   `json:"role" binding:"required"`
		Departments []string `json:"departments" binding:"required,min=1"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := models.UserRole(input.Role)
	if _, ok := models.TierForRole[role]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid staff role"})
		return
	}

	ctx := c.Request.Context()
	count, err := ac.users.CountByEmail(ctx, input.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
		return
	}

	for _, d := range input.Departments {
		if d != models.DepartmentAll && !models.ValidCategory(d) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department"})
			return
		}
	}

	now := time.Now()
	user := &models.User{
		ID:          primitive.NewObjectID(),
		Name:        input.Name,
		Email:       input.Email,
		Password:    input.Password,
		Role:        role,
		Departments: input.Departments,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := user.HashPassword(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	if err := ac.users.Insert(ctx, user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create employee"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Employee created successfully",
		"user": gin.H{
			"id":          user.ID,
			"name":        user.Name,
			"email":       user.Email,
			"role":        user.Role,
			"departments": user.Departments,
		},
	})
}

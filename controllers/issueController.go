package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"
	"civicconnect-be/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type IssueController struct {
	issues      repository.IssueRepository
	users       repository.UserRepository
	lifecycle   *services.LifecycleService
	assigner    *services.AssignmentService
	claims      *services.ClaimService
	resolutions *services.ResolutionService
	votes       *mongo.Collection
	comments    *mongo.Collection
}

func NewIssueController(
	issues repository.IssueRepository,
	users repository.UserRepository,
	lifecycle *services.LifecycleService,
	assigner *services.AssignmentService,
	claims *services.ClaimService,
	resolutions *services.ResolutionService,
	votes, comments *mongo.Collection,
) *IssueController {
	return &IssueController{
		issues:      issues,
		users:       users,
		lifecycle:   lifecycle,
		assigner:    assigner,
		claims:      claims,
		resolutions: resolutions,
		votes:       votes,
		comments:    comments,
	}
}

// currentUser loads the acting user set by the auth middleware. Writes the
// error response itself when the user cannot be resolved.
func (ic *IssueController) currentUser(c *gin.Context) (*models.User, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}
	objID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return nil, false
	}
	user, err := ic.users.FindByID(c.Request.Context(), objID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return nil, false
	}
	return user, true
}

// respondWorkflowError translates the lifecycle error taxonomy into HTTP
// responses so every failure carries a specific message.
func respondWorkflowError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrIssueNotFound), errors.Is(err, models.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrAlreadyAccepted):
		status = http.StatusConflict
	case errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrForbiddenTransition),
		errors.Is(err, models.ErrNotAssignedToYou):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrLocationMismatch),
		errors.Is(err, models.ErrNoEligibleEmployees),
		errors.Is(err, models.ErrInvalidAssignee):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// CreateIssue handles the creation of a new issue
func (ic *IssueController) CreateIssue(c *gin.Context) {
	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	var input struct {
		Title       string   `json:"title" binding:"required,max=200"`
		Description string   `json:"description" binding:"required,max=1000"`
		Category    string   `json:"category" binding:"required"`
		Location    string   `json:"location" binding:"required,max=200"`
		Priority    *string  `json:"priority,omitempty"`
		Latitude    *float64 `json:"latitude,omitempty"`
		Longitude   *float64 `json:"longitude,omitempty"`
		Tags        []string `json:"tags,omitempty"`
		Images      []string `json:"images,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.ValidCategory(input.Category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	in := services.CreateIssueInput{
		Title:       input.Title,
		Description: input.Description,
		Category:    models.IssueCategory(input.Category),
		Location:    input.Location,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Tags:        input.Tags,
		Images:      input.Images,
	}
	if input.Priority != nil {
		if !models.ValidPriority(*input.Priority) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return
		}
		in.Priority = models.IssuePriority(*input.Priority)
	}

	issue, err := ic.lifecycle.Create(c.Request.Context(), actor, in)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusCreated, issue)
}

// GetAllIssues handles retrieving all issues with filtering, pagination, and vote counts
func (ic *IssueController) GetAllIssues(c *gin.Context) {
	ctx := c.Request.Context()

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	filter := repository.IssueFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		Sort:     c.DefaultQuery("sort", "newest"),
		Skip:     int64((page - 1) * limit),
		Limit:    int64(limit),
	}

	issues, total, err := ic.issues.Find(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	var currentUserID *primitive.ObjectID
	if userIDStr, exists := c.Get("user_id"); exists {
		if objID, err := primitive.ObjectIDFromHex(userIDStr.(string)); err == nil {
			currentUserID = &objID
		}
	}

	enhanced := make([]gin.H, 0, len(issues))
	for i := range issues {
		enhanced = append(enhanced, ic.withVotes(c, &issues[i], currentUserID))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"issues":      enhanced,
		"totalIssues": total,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

// withVotes decorates an issue with its vote count, the requesting user's
// vote flag and the reporter's public profile.
func (ic *IssueController) withVotes(c *gin.Context, issue *models.Issue, currentUserID *primitive.ObjectID) gin.H {
	ctx := c.Request.Context()

	var voteCount int64
	if ic.votes != nil {
		voteCount, _ = ic.votes.CountDocuments(ctx, bson.M{"issue": issue.ID})
	}

	userHasVoted := false
	if ic.votes != nil && currentUserID != nil {
		count, err := ic.votes.CountDocuments(ctx, bson.M{"issue": issue.ID, "user": *currentUserID})
		if err == nil && count > 0 {
			userHasVoted = true
		}
	}

	reportedBy := gin.H{"id": issue.ReportedBy}
	if reporter, err := ic.users.FindByID(ctx, issue.ReportedBy); err == nil {
		reportedBy["name"] = reporter.Name
		reportedBy["email"] = reporter.Email
	}

	return gin.H{
		"issue":        issue,
		"votes":        voteCount,
		"userHasVoted": userHasVoted,
		"reportedBy":   reportedBy,
	}
}

// GetIssue retrieves an issue by its ID with vote information
func (ic *IssueController) GetIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	issue, err := ic.issues.FindByID(c.Request.Context(), issueID)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	var currentUserID *primitive.ObjectID
	if userIDStr, exists := c.Get("user_id"); exists {
		if objID, err := primitive.ObjectIDFromHex(userIDStr.(string)); err == nil {
			currentUserID = &objID
		}
	}

	c.JSON(http.StatusOK, ic.withVotes(c, issue, currentUserID))
}

// GetIssuesByUser retrieves all issues reported by the authenticated user
func (ic *IssueController) GetIssuesByUser(c *gin.Context) {
	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	issues, _, err := ic.issues.Find(c.Request.Context(), repository.IssueFilter{ReportedBy: &actor.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	enhanced := make([]gin.H, 0, len(issues))
	for i := range issues {
		enhanced = append(enhanced, ic.withVotes(c, &issues[i], &actor.ID))
	}

	c.JSON(http.StatusOK, enhanced)
}

// UpdateIssue lets the reporter edit content fields while no work has
// started. Status never moves through this endpoint: accept and resolve are
// employee actions with their own routes, so any status write here is
// rejected outright.
func (ic *IssueController) UpdateIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	var input struct {
		Title       *string  `json:"title,omitempty"`
		Description *string  `json:"description,omitempty"`
		Category    *string  `json:"category,omitempty"`
		Location    *string  `json:"location,omitempty"`
		Status      *string  `json:"status,omitempty"`
		Latitude    *float64 `json:"latitude,omitempty"`
		Longitude   *float64 `json:"longitude,omitempty"`
		Tags        []string `json:"tags,omitempty"`
		Images      []string `json:"images,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Status != nil {
		respondWorkflowError(c, models.ErrForbiddenTransition)
		return
	}

	issue, err := ic.issues.FindByID(c.Request.Context(), issueID)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	if issue.ReportedBy != actor.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to update this issue"})
		return
	}

	update := repository.IssueContentUpdate{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Tags:        input.Tags,
		Images:      input.Images,
	}
	if input.Category != nil {
		if !models.ValidCategory(*input.Category) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
			return
		}
		cat := models.IssueCategory(*input.Category)
		update.Category = &cat
	}

	updated, err := ic.issues.UpdateContent(c.Request.Context(), issueID, update)
	if err == repository.ErrPreconditionFailed {
		respondWorkflowError(c, models.ErrInvalidState)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update issue"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteIssue lets the reporter withdraw a report nobody has started on.
func (ic *IssueController) DeleteIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	issue, err := ic.issues.FindByID(ctx, issueID)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	if issue.ReportedBy != actor.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to delete this issue"})
		return
	}
	if issue.Status != models.StatusReported {
		respondWorkflowError(c, models.ErrInvalidState)
		return
	}

	if err := ic.issues.Delete(ctx, issueID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete issue"})
		return
	}
	if ic.votes != nil {
		_, _ = ic.votes.DeleteMany(ctx, bson.M{"issue": issueID})
	}
	if ic.comments != nil {
		_, _ = ic.comments.DeleteMany(ctx, bson.M{"issue": issueID})
	}

	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

// SetPriority lets staff re-triage an open issue.
func (ic *IssueController) SetPriority(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	var input struct {
		Priority string `json:"priority" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidPriority(input.Priority) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
		return
	}

	issue, err := ic.lifecycle.SetPriority(c.Request.Context(), issueID, models.IssuePriority(input.Priority), actor)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, issue)
}

// AssignIssue routes an issue to a specific employee, or department-wide
// when no userId is given.
func (ic *IssueController) AssignIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	var input struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issue, err := ic.assigner.Assign(c.Request.Context(), issueID, input.UserID, actor)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, issue)
}

// AcceptIssue claims the issue for the calling employee.
func (ic *IssueController) AcceptIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	issue, err := ic.claims.Accept(c.Request.Context(), issueID, actor.ID)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, issue)
}

// ResolveIssue finalizes an in-progress issue with an optional resolution
// photo and GPS fix.
func (ic *IssueController) ResolveIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	var input struct {
		Latitude  *float64 `json:"latitude,omitempty"`
		Longitude *float64 `json:"longitude,omitempty"`
		Photo     *string  `json:"photo,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var loc *models.GeoPoint
	if input.Latitude != nil && input.Longitude != nil {
		loc = &models.GeoPoint{Latitude: *input.Latitude, Longitude: *input.Longitude}
	}

	issue, err := ic.resolutions.Resolve(c.Request.Context(), issueID, actor, loc, input.Photo)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, issue)
}

// CloseIssue lets the reporter close a resolved issue, removing it.
func (ic *IssueController) CloseIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	if err := ic.lifecycle.Close(c.Request.Context(), issueID, actor); err != nil {
		respondWorkflowError(c, err)
		return
	}

	// Remove associated votes and comments; the issue itself is gone.
	if ic.votes != nil {
		_, _ = ic.votes.DeleteMany(c.Request.Context(), bson.M{"issue": issueID})
	}
	if ic.comments != nil {
		_, _ = ic.comments.DeleteMany(c.Request.Context(), bson.M{"issue": issueID})
	}

	c.JSON(http.StatusOK, gin.H{"message": "Issue closed"})
}

// HandleVoteOnIssue toggles the user's vote on an issue (vote if not voted, unvote if already voted)
func (ic *IssueController) HandleVoteOnIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := ic.issues.FindByID(ctx, issueID); err != nil {
		respondWorkflowError(c, err)
		return
	}

	count, err := ic.votes.CountDocuments(ctx, bson.M{"issue": issueID, "user": actor.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing votes"})
		return
	}

	if count > 0 {
		if _, err := ic.votes.DeleteOne(ctx, bson.M{"issue": issueID, "user": actor.ID}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove vote"})
			return
		}

		updatedVoteCount, err := ic.votes.CountDocuments(ctx, bson.M{"issue": issueID})
		if err != nil {
			updatedVoteCount = 0
		}

		c.JSON(http.StatusOK, gin.H{
			"message":      "Vote removed successfully",
			"voted":        false,
			"votes":        updatedVoteCount,
			"userHasVoted": false,
		})
		return
	}

	vote := models.Vote{
		ID:        primitive.NewObjectID(),
		Issue:     issueID,
		User:      actor.ID,
		CreatedAt: time.Now(),
	}
	if _, err := ic.votes.InsertOne(ctx, vote); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cast vote"})
		return
	}

	updatedVoteCount, err := ic.votes.CountDocuments(ctx, bson.M{"issue": issueID})
	if err != nil {
		updatedVoteCount = 1
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Vote cast successfully",
		"voted":        true,
		"votes":        updatedVoteCount,
		"userHasVoted": true,
	})
}

// AddComment appends a comment to an issue's discussion thread.
func (ic *IssueController) AddComment(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	actor, ok := ic.currentUser(c)
	if !ok {
		return
	}

	var input struct {
		Content string `json:"content" binding:"required,max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := ic.issues.FindByID(ctx, issueID); err != nil {
		respondWorkflowError(c, err)
		return
	}

	comment := models.Comment{
		ID:         primitive.NewObjectID(),
		Issue:      issueID,
		Author:     actor.ID,
		AuthorName: actor.Name,
		Content:    input.Content,
		IsStaff:    actor.Role.IsEmployee() || actor.Role == models.RoleAdmin,
		CreatedAt:  time.Now(),
	}

	if _, err := ic.comments.InsertOne(ctx, comment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add comment"})
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// GetComments lists an issue's comments, oldest first.
func (ic *IssueController) GetComments(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx := c.Request.Context()
	cursor, err := ic.comments.Find(ctx, bson.M{"issue": issueID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comments"})
		return
	}
	defer cursor.Close(ctx)

	comments := make([]models.Comment, 0)
	if err := cursor.All(ctx, &comments); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode comments"})
		return
	}

	c.JSON(http.StatusOK, comments)
}

package repository

import (
	"context"
	"time"

	"civicconnect-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIssueRepository implements IssueRepository on a mongo collection.
// Every conditional transition is a single FindOneAndUpdate whose filter
// carries the precondition, so competing writers are ordered by the store.
type MongoIssueRepository struct {
	col *mongo.Collection
}

func NewMongoIssueRepository(col *mongo.Collection) *MongoIssueRepository {
	return &MongoIssueRepository{col: col}
}

var claimableStatuses = []models.IssueStatus{models.StatusReported, models.StatusEscalated}

var openStatuses = []models.IssueStatus{models.StatusReported, models.StatusInProgress, models.StatusEscalated}

func (r *MongoIssueRepository) Insert(ctx context.Context, issue *models.Issue) error {
	_, err := r.col.InsertOne(ctx, issue)
	return err
}

func (r *MongoIssueRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrIssueNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *MongoIssueRepository) Find(ctx context.Context, f IssueFilter) ([]models.Issue, int64, error) {
	filter := bson.M{}
	if f.Category != "" && f.Category != "all" {
		filter["category"] = f.Category
	}
	if f.Status != "" && f.Status != "all" {
		filter["status"] = f.Status
	}
	if f.Search != "" {
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": f.Search, "$options": "i"}},
			{"description": bson.M{"$regex": f.Search, "$options": "i"}},
		}
	}
	if f.ReportedBy != nil {
		filter["reportedBy"] = *f.ReportedBy
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	sortOrder := -1
	if f.Sort == "oldest" {
		sortOrder = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: sortOrder}})
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, err
	}
	return issues, total, nil
}

func (r *MongoIssueRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return models.ErrIssueNotFound
	}
	return nil
}

// findOneAndApply runs a conditional FindOneAndUpdate returning the document
// after the mutation. ErrNoDocuments is folded into ErrPreconditionFailed;
// callers that need to distinguish "gone" from "changed" re-read by id.
// findOneAndApply runs a single conditional FindOneAndUpdate. The update may
// be a plain bson.M document or a bson.A aggregation pipeline.
func (r *MongoIssueRepository) findOneAndApply(ctx context.Context, filter bson.M, update interface{}) (*models.Issue, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var issue models.Issue
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return nil, ErrPreconditionFailed
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *MongoIssueRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, u IssueContentUpdate) (*models.Issue, error) {
	set := bson.M{"updatedAt": time.Now()}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.Location != nil {
		set["location"] = *u.Location
	}
	if u.Latitude != nil {
		set["latitude"] = *u.Latitude
	}
	if u.Longitude != nil {
		set["longitude"] = *u.Longitude
	}
	if u.Tags != nil {
		set["tags"] = u.Tags
	}
	if u.Images != nil {
		set["images"] = u.Images
	}
	filter := bson.M{"_id": id, "status": models.StatusReported}
	return r.findOneAndApply(ctx, filter, bson.M{"$set": set})
}

func (r *MongoIssueRepository) SetAssignment(ctx context.Context, id primitive.ObjectID, a Assignment, entry models.StatusChange) (*models.Issue, error) {
	// Claimable only: once an employee has accepted, re-routing would leave
	// assignedTo and acceptedBy pointing at different people.
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": claimableStatuses},
	}
	set := bson.M{
		"assignedRole": a.Role,
		"assignedBy":   a.AssignedBy,
		"assignedAt":   a.AssignedAt,
		"updatedAt":    a.AssignedAt,
	}
	if a.AssignedTo != nil {
		set["assignedTo"] = *a.AssignedTo
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"statusHistory": entry},
	}
	if a.AssignedTo == nil {
		update["$unset"] = bson.M{"assignedTo": ""}
	}
	if a.Deadline != nil {
		set["escalationDeadline"] = *a.Deadline
	} else {
		unset, _ := update["$unset"].(bson.M)
		if unset == nil {
			unset = bson.M{}
			update["$unset"] = unset
		}
		unset["escalationDeadline"] = ""
	}
	return r.findOneAndApply(ctx, filter, update)
}

func (r *MongoIssueRepository) SetPriority(ctx context.Context, id primitive.ObjectID, priority models.IssuePriority, deadline *time.Time, entry models.StatusChange) (*models.Issue, error) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": openStatuses},
	}
	set := bson.M{
		"priority":  priority,
		"updatedAt": entry.Timestamp,
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"statusHistory": entry},
	}
	if deadline != nil {
		set["escalationDeadline"] = *deadline
	} else {
		update["$unset"] = bson.M{"escalationDeadline": ""}
	}
	return r.findOneAndApply(ctx, filter, update)
}

func (r *MongoIssueRepository) TryClaim(ctx context.Context, id, employee primitive.ObjectID, now time.Time, entry models.StatusChange) (*models.Issue, error) {
	// In mongo a nil comparison matches both missing and null fields, which
	// is exactly the "unset" the claim precondition needs. acceptedBy may
	// also equal the claiming employee: that lets the original owner
	// re-accept after an escalation without the owner identity ever changing.
	filter := bson.M{
		"_id":        id,
		"status":     bson.M{"$in": claimableStatuses},
		"acceptedBy": bson.M{"$in": []interface{}{nil, employee}},
		"$or": []bson.M{
			{"assignedTo": nil},
			{"assignedTo": employee},
		},
	}
	// Aggregation pipeline so the backfill of assignedBy/assignedAt is
	// decided against the document as it is at write time. A concurrent
	// assignment landing after the caller's read must not be overwritten.
	// Pipeline updates have no $push, hence the $concatArrays append.
	update := bson.A{bson.M{"$set": bson.M{
		"status":     models.StatusInProgress,
		"acceptedBy": employee,
		"acceptedAt": now,
		"assignedTo": employee,
		"updatedAt":  now,
		"assignedBy": bson.M{"$ifNull": bson.A{"$assignedBy", employee}},
		"assignedAt": bson.M{"$ifNull": bson.A{"$assignedAt", now}},
		"statusHistory": bson.M{"$concatArrays": bson.A{
			bson.M{"$ifNull": bson.A{"$statusHistory", bson.A{}}},
			bson.A{entry},
		}},
	}}}
	return r.findOneAndApply(ctx, filter, update)
}

func (r *MongoIssueRepository) MarkResolved(ctx context.Context, id primitive.ObjectID, res models.Resolution, resolvedAt time.Time, days float64, entry models.StatusChange) (*models.Issue, error) {
	filter := bson.M{
		"_id":           id,
		"status":        models.StatusInProgress,
		"pointsAwarded": false,
	}
	update := bson.M{
		"$set": bson.M{
			"status":               models.StatusResolved,
			"resolved":             res,
			"resolvedAt":           resolvedAt,
			"actualResolutionTime": days,
			"pointsAwarded":        true,
			"updatedAt":            resolvedAt,
		},
		"$push": bson.M{"statusHistory": entry},
	}
	return r.findOneAndApply(ctx, filter, update)
}

func (r *MongoIssueRepository) ReopenForRetry(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{
		"_id":           id,
		"status":        models.StatusResolved,
		"pointsAwarded": true,
	}
	update := bson.M{
		"$set": bson.M{
			"status":        models.StatusInProgress,
			"pointsAwarded": false,
			"updatedAt":     time.Now(),
		},
		"$unset": bson.M{
			"resolved":             "",
			"resolvedAt":           "",
			"actualResolutionTime": "",
		},
	}
	_, err := r.findOneAndApply(ctx, filter, update)
	return err
}

func (r *MongoIssueRepository) Promote(ctx context.Context, id primitive.ObjectID, fromRole models.StaffTier, ev models.EscalationEvent, deadline *time.Time, entry models.StatusChange) (*models.Issue, error) {
	filter := bson.M{
		"_id":                id,
		"status":             bson.M{"$in": openStatuses},
		"assignedRole":       fromRole,
		"escalationDeadline": bson.M{"$lte": ev.Timestamp},
	}
	set := bson.M{
		"status":       models.StatusEscalated,
		"assignedRole": ev.ToRole,
		"assignedAt":   ev.Timestamp,
		"updatedAt":    ev.Timestamp,
	}
	update := bson.M{
		"$set": set,
		"$push": bson.M{
			"escalationHistory": ev,
			"statusHistory":     entry,
		},
	}
	if deadline != nil {
		set["escalationDeadline"] = *deadline
	} else {
		update["$unset"] = bson.M{"escalationDeadline": ""}
	}
	return r.findOneAndApply(ctx, filter, update)
}

func (r *MongoIssueRepository) FindEscalatable(ctx context.Context, now time.Time) ([]models.Issue, error) {
	filter := bson.M{
		"status":             bson.M{"$in": openStatuses},
		"assignedRole":       bson.M{"$in": []models.StaffTier{models.TierFieldStaff, models.TierSupervisor}},
		"escalationDeadline": bson.M{"$lte": now},
	}
	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

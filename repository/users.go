package repository

import (
	"context"

	"civicconnect-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var employeeRoles = []models.UserRole{
	models.RoleEmployee,
	models.RoleFieldStaff,
	models.RoleSupervisor,
	models.RoleCommissioner,
}

// MongoUserRepository implements UserRepository on a mongo collection.
type MongoUserRepository struct {
	col *mongo.Collection
}

func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

func (r *MongoUserRepository) Insert(ctx context.Context, user *models.User) error {
	_, err := r.col.InsertOne(ctx, user)
	return err
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserRepository) CountByEmail(ctx context.Context, email string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) FindEligible(ctx context.Context, category models.IssueCategory) ([]models.User, error) {
	filter := bson.M{
		"role":        bson.M{"$in": employeeRoles},
		"isActive":    true,
		"departments": bson.M{"$in": []string{string(category), models.DepartmentAll}},
	}
	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AdjustPoints is an atomic $inc at the store, never read-modify-write.
func (r *MongoUserRepository) AdjustPoints(ctx context.Context, id primitive.ObjectID, delta int) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"points": delta}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

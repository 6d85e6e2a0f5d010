package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"civicconnect-be/config"
	"civicconnect-be/controllers"
	"civicconnect-be/models"
	"civicconnect-be/repository"
	"civicconnect-be/routes"
	"civicconnect-be/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const notificationQueue = "civicconnect:notifications"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	db := config.ConnectDB()
	if db == nil {
		log.Fatal("Failed to connect to MongoDB")
	}
	config.ConnectRedis()

	issueColl := db.Collection("issues")
	userColl := db.Collection("users")
	voteColl := db.Collection("votes")
	commentColl := db.Collection("comments")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := models.EnsureVoteIndex(ctx, voteColl); err != nil {
		log.Printf("Failed to ensure vote index: %v", err)
	}
	cancel()

	issues := repository.NewMongoIssueRepository(issueColl)
	users := repository.NewMongoUserRepository(userColl)

	notifier := services.NewRedisNotifier(config.RedisClient, notificationQueue)
	stopWorker := services.StartNotificationWorker(config.RedisClient, notificationQueue, services.MailSettings{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     envInt("SMTP_PORT", 587),
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	})
	defer stopWorker()

	quality := services.NewQualityClient(os.Getenv("QUALITY_VALIDATOR_URL"))

	assigner := services.NewAssignmentService(issues, users, notifier)
	resolutions := services.NewResolutionService(issues, users, notifier)
	claims := services.NewClaimService(issues, users, notifier)
	lifecycle := services.NewLifecycleService(issues, users, assigner, resolutions, notifier, quality)

	escalations := services.NewEscalationService(issues, notifier)
	sweepInterval := time.Duration(envInt("ESCALATION_SWEEP_MINUTES", 5)) * time.Minute
	stopSweep := services.StartEscalationScheduler(escalations, sweepInterval)
	defer stopSweep()

	authController := controllers.NewAuthController(users)
	issueController := controllers.NewIssueController(
		issues, users, lifecycle, assigner, claims, resolutions, voteColl, commentColl)
	adminController := controllers.NewAdminController(users, issueColl, voteColl)

	r := gin.Default()

	clientOrigin := os.Getenv("CLIENT_ORIGIN")
	if clientOrigin == "" {
		clientOrigin = "http://localhost:3000"
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{clientOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.AuthRoutes(r, authController)
	routes.IssueRoutes(r, issueController, envInt("ISSUE_CREATE_LIMIT", 5))
	routes.AdminRoutes(r, adminController)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if err := r.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"indicator-project/tracking-service/events"
	"indicator-project/tracking-service/handlers"
	"indicator-project/tracking-service/logging"
	"indicator-project/tracking-service/repositories"
	"indicator-project/tracking-service/services"
	"indicator-project/tracking-service/storage"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Role, Position, Department, X-User-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	logging.InitLogger()
	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Tracking Service...")

	if err := godotenv.Load(".env"); err != nil {
		logging.Logger.Warnf("Event ID: ENV_LOAD_WARNING, Description: No .env file loaded: %v", err)
	}

	mongoURI := os.Getenv("MONGO_URI")
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoDBName == "" {
		mongoDBName = "tracking_db"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", mongoURI)

	db := client.Database(mongoDBName)
	taskRepo := repositories.NewMongoTaskRepository(db.Collection("tasks"))
	indicatorRepo := repositories.NewMongoIndicatorRepository(db.Collection("indicators"))
	userDirectory := repositories.NewMongoUserDirectory(db.Collection("users"))
	departmentDirectory := repositories.NewMongoDepartmentDirectory(db.Collection("departments"))

	cassHost := os.Getenv("CASS_DB")
	if cassHost == "" {
		cassHost = "127.0.0.1"
	}
	notificationStore, err := repositories.NewCassandraNotificationStore(cassHost, logging.Logger)
	if err != nil {
		logging.Logger.Fatalf("Event ID: CASSANDRA_CONNECTION_FAILED, Description: Notification store connection failed: %v", err)
	}
	defer notificationStore.Close()

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	attachmentStore, err := storage.NewDiskAttachmentStore(uploadDir)
	if err != nil {
		logging.Logger.Fatalf("Event ID: STORAGE_INIT_FAILED, Description: Attachment store init failed: %v", err)
	}

	hub := events.NewHub(logging.Logger)
	notificationService := services.NewNotificationService(notificationStore, logging.Logger)
	taskService := services.NewTaskService(taskRepo, indicatorRepo, userDirectory, departmentDirectory, attachmentStore, hub, notificationService, logging.Logger)
	indicatorService := services.NewIndicatorService(indicatorRepo, taskRepo, taskService, hub, logging.Logger)

	sweepInterval := 60 * time.Second
	if raw := os.Getenv("SWEEP_INTERVAL_SECONDS"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			sweepInterval = time.Duration(seconds) * time.Second
		}
	}
	sweeper := services.NewSweeper(taskRepo, indicatorService, hub, hub, notificationService, logging.Logger, sweepInterval)
	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper.Start(sweeperCtx)

	taskHandler := handlers.NewTaskHandler(taskService)
	indicatorHandler := handlers.NewIndicatorHandler(indicatorService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, hub)

	r := mux.NewRouter()

	r.HandleFunc("/api/indicators", indicatorHandler.CreateIndicator).Methods(http.MethodPost)
	r.HandleFunc("/api/indicators", indicatorHandler.ListIndicators).Methods(http.MethodGet)
	r.HandleFunc("/api/indicators/hierarchy", indicatorHandler.Hierarchy).Methods(http.MethodGet)
	r.HandleFunc("/api/indicators/{indicatorID}", indicatorHandler.GetIndicator).Methods(http.MethodGet)
	r.HandleFunc("/api/indicators/{indicatorID}", indicatorHandler.DeleteIndicator).Methods(http.MethodDelete)
	r.HandleFunc("/api/indicators/{indicatorID}/replace", indicatorHandler.ApproveReplacement).Methods(http.MethodPost)

	r.HandleFunc("/api/tasks", taskHandler.CreateTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks", taskHandler.ListTasks).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/pending-approvals", taskHandler.PendingApprovals).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskID}", taskHandler.GetTask).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskID}", taskHandler.UpdateTask).Methods(http.MethodPut)
	r.HandleFunc("/api/tasks/{taskID}", taskHandler.DeleteTask).Methods(http.MethodDelete)
	r.HandleFunc("/api/tasks/{taskID}/submissions", taskHandler.SubmitTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/approve", taskHandler.ApproveTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/reject", taskHandler.RejectTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/clone", taskHandler.CloneOverdueTask).Methods(http.MethodPost)

	r.HandleFunc("/api/notifications", notificationHandler.ListNotifications).Methods(http.MethodGet)
	r.HandleFunc("/api/notifications/{notificationID}/read", notificationHandler.MarkRead).Methods(http.MethodPut)
	r.HandleFunc("/api/notifications/{notificationID}", notificationHandler.DeleteNotification).Methods(http.MethodDelete)
	r.HandleFunc("/ws", notificationHandler.Connect).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Tracking service is running"))
	}).Methods(http.MethodGet)

	corsRouter := enableCORS(r)

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: SERVER_PORT is not set in the environment variables.")
	}

	serverAddress := fmt.Sprintf(":%s", serverPort)
	logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", serverAddress)

	if err := http.ListenAndServe(serverAddress, corsRouter); err != nil {
		logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
	}
}

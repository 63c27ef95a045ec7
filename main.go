package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go-rooms/backend/config"
	"go-rooms/backend/database"
	"go-rooms/backend/handlers"
	"go-rooms/backend/middleware"
	"go-rooms/backend/realtime"
	"go-rooms/backend/services"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func main() {
	cfg := config.LoadConfig()

	ctx := context.Background()
	store, err := database.Connect(ctx, cfg.MongoDBURI, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Disconnect()

	if err := store.EnsureIndexes(ctx); err != nil {
		// 缺索引不致命：全文搜尋會退回 regex 備援
		log.Printf("Failed to create indexes: %v", err)
	}

	// 即時事件：本地 Hub 一定在，Redis 發佈器只在有設定時加入
	hub := realtime.NewHub()
	go hub.Run()
	var notifier realtime.Notifier = hub
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		notifier = realtime.Multi{hub, realtime.NewRedisPublisher(redisClient)}
		log.Printf("Redis event publishing enabled (%s)", cfg.RedisAddr)
	}

	roomRepo := database.NewRoomRepository(store)
	messageRepo := database.NewMessageRepository(store)
	moderationRepo := database.NewModerationLogRepository(store)

	roomService := services.NewRoomService(roomRepo, notifier)
	messageService := services.NewMessageService(roomRepo, messageRepo, notifier)
	moderationService := services.NewModerationService(roomRepo, moderationRepo, notifier)

	authHandler := handlers.NewAuthHandler(store.Users(), cfg.JWTSecret)
	roomHandler := handlers.NewRoomHandler(roomService, hub)
	messageHandler := handlers.NewMessageHandler(messageService)
	moderationHandler := handlers.NewModerationHandler(moderationService)

	router := mux.NewRouter()

	// 健康檢查路由
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Backend is running!")
	}).Methods("GET")

	// 身分邊界路由（不需 token）
	router.HandleFunc("/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/login", authHandler.Login).Methods("POST")

	// 其餘路由都要求已驗證身分
	api := router.NewRoute().Subrouter()
	api.Use(middleware.JWTMiddleware(cfg.JWTSecret))

	// 聊天室生命週期
	api.HandleFunc("/rooms", roomHandler.Create).Methods("POST")
	api.HandleFunc("/rooms", roomHandler.List).Methods("GET")
	api.HandleFunc("/rooms/mine", roomHandler.Mine).Methods("GET")
	api.HandleFunc("/rooms/unread-counts", messageHandler.AllUnread).Methods("GET")
	api.HandleFunc("/rooms/{id}", roomHandler.Get).Methods("GET")
	api.HandleFunc("/rooms/{id}", roomHandler.Update).Methods("PUT")
	api.HandleFunc("/rooms/{id}", roomHandler.Archive).Methods("DELETE")
	api.HandleFunc("/rooms/{id}/join", roomHandler.Join).Methods("POST")
	api.HandleFunc("/rooms/{id}/leave", roomHandler.Leave).Methods("POST")
	api.HandleFunc("/rooms/{id}/subscribe", roomHandler.Subscribe).Methods("GET")

	// 訊息
	api.HandleFunc("/rooms/{id}/messages", messageHandler.List).Methods("GET")
	api.HandleFunc("/rooms/{id}/messages", messageHandler.Send).Methods("POST")
	api.HandleFunc("/rooms/{id}/messages/search", messageHandler.Search).Methods("GET")
	api.HandleFunc("/rooms/{id}/messages/read", messageHandler.MarkRead).Methods("POST")
	api.HandleFunc("/rooms/{id}/messages/{mid}", messageHandler.Delete).Methods("DELETE")
	api.HandleFunc("/rooms/{id}/messages/{mid}", messageHandler.Edit).Methods("PUT")
	api.HandleFunc("/rooms/{id}/messages/{mid}/react", messageHandler.React).Methods("POST")
	api.HandleFunc("/rooms/{id}/unread", messageHandler.Unread).Methods("GET")

	// 管理操作
	api.HandleFunc("/rooms/{id}/mute/{userId}", moderationHandler.Mute).Methods("POST")
	api.HandleFunc("/rooms/{id}/unmute/{userId}", moderationHandler.Unmute).Methods("POST")
	api.HandleFunc("/rooms/{id}/kick/{userId}", moderationHandler.Kick).Methods("POST")
	api.HandleFunc("/rooms/{id}/ban/{userId}", moderationHandler.Ban).Methods("POST")
	api.HandleFunc("/rooms/{id}/unban/{userId}", moderationHandler.Unban).Methods("POST")
	api.HandleFunc("/rooms/{id}/moderators/{userId}", moderationHandler.AssignModerator).Methods("POST")
	api.HandleFunc("/rooms/{id}/moderators/{userId}", moderationHandler.RemoveModerator).Methods("DELETE")
	api.HandleFunc("/rooms/{id}/mute-status", moderationHandler.MuteStatus).Methods("GET")
	api.HandleFunc("/rooms/{id}/ban-status", moderationHandler.BanStatus).Methods("GET")
	api.HandleFunc("/rooms/{id}/moderation-logs", moderationHandler.Logs).Methods("GET")
	api.HandleFunc("/rooms/{id}/moderation-stats", moderationHandler.Stats).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      c.Handler(router),
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	// 等待 SIGINT / SIGTERM 後優雅關閉
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %s, shutting down server...", sig)

	// 最多等 30 秒收尾，避免請求中斷
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully.")
}

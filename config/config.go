package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config 結構體用於儲存應用程式的配置
type Config struct {
	MongoDBURI     string
	DBName         string
	Port           string
	JWTSecret      string
	RedisAddr      string // 空字串表示不啟用 Redis 事件發佈
	AllowedOrigins string
}

// LoadConfig 載入配置，優先從環境變數讀取，其次從 .env 檔案讀取
func LoadConfig() *Config {
	// 嘗試載入 .env 檔案，如果不存在也不會報錯
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	cfg := &Config{
		MongoDBURI:     getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:         getEnv("DB_NAME", "room_chat_db"),
		Port:           getEnv("PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:5173"),
	}
	return cfg
}

// getEnv 輔助函數，用於從環境變數獲取值，如果不存在則使用預設值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// RecordingsPath is the root directory for uploaded recording files.
	// Files live under <RecordingsPath>/<meeting_id>/<safe_filename>.
	RecordingsPath string
	MaxChunkSize   int64

	// STT pipeline settings.
	ChunkMinutes  int
	Language      string
	WorkerCount   int
	MaxRetries    int
	WhisperModel  string
	WhisperDevice string
	// HuggingFaceToken gates the diarization pipeline. Empty means
	// transcripts are produced without speaker labels.
	HuggingFaceToken string

	// Optional S3 archive for completed recordings. Disabled when the
	// bucket is empty.
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort: getEnv("APP_PORT", "8080"),
		AppMode: getEnv("APP_MODE", "debug"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "maxmeet"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		RecordingsPath: getEnv("RECORDINGS_PATH", "./data/recordings"),
		MaxChunkSize:   int64(getEnvAsInt("MAX_CHUNK_SIZE", 10*1024*1024)),

		ChunkMinutes:     getEnvAsInt("STT_CHUNK_MINUTES", 10),
		Language:         getEnv("STT_LANGUAGE", "ko"),
		WorkerCount:      getEnvAsInt("WORKER_COUNT", 2),
		MaxRetries:       getEnvAsInt("MAX_RETRIES", 3),
		WhisperModel:     getEnv("WHISPER_MODEL", "small"),
		WhisperDevice:    getEnv("WHISPER_DEVICE", "cpu"),
		HuggingFaceToken: getEnv("HUGGINGFACE_TOKEN", ""),

		S3Region:    getEnv("S3_REGION", ""),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

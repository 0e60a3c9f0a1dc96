// config.go - Configuration loaded from environment variables

package configs

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	// Vision provider configuration
	OCR_PROVIDER       string // "gemini" or "mistral"
	GEMINI_API_KEY     string
	OCR_MODEL_NAME     string
	MISTRAL_API_KEY    string
	MISTRAL_MODEL_NAME string

	// Pricing (per 1M tokens in USD)
	OCR_INPUT_PRICE_PER_MILLION  float64
	OCR_OUTPUT_PRICE_PER_MILLION float64
	USD_TO_BDT                   float64

	// Server Configuration
	PORT            string
	ALLOWED_ORIGINS string

	// Storage Configuration
	STORAGE_BACKEND string // "mongo" or "memory"
	MONGO_URI       string
	MONGO_DB_NAME   string

	// Image intake settings
	ENABLE_IMAGE_PREPROCESSING bool
	MAX_IMAGE_DIMENSION        int
	MAX_IMAGE_BYTES            int
	MAX_KHATA_IMAGES           int

	// Extraction normalization
	ROLL_NUMBER_WIDTH int

	// AI call guard
	AI_TIMEOUT                int // seconds
	BREAKER_FAILURE_THRESHOLD int
	BREAKER_OPEN_SECONDS      int
	RATE_LIMIT_TOKENS         int
	RATE_LIMIT_REFILL_SECONDS int

	// Review sessions
	SESSION_TTL_MINUTES      int
	ROSTER_CACHE_TTL_SECONDS int
)

func init() {
	setDefaults()
}

// setDefaults gives every setting a usable value so packages work without LoadConfig (tests).
func setDefaults() {
	OCR_PROVIDER = "gemini"
	OCR_MODEL_NAME = "gemini-2.5-flash"
	MISTRAL_MODEL_NAME = "pixtral-large-latest"

	OCR_INPUT_PRICE_PER_MILLION = 0.30
	OCR_OUTPUT_PRICE_PER_MILLION = 2.50
	USD_TO_BDT = 122.0

	PORT = "8080"
	ALLOWED_ORIGINS = "*"

	STORAGE_BACKEND = "mongo"
	MONGO_URI = "mongodb://localhost:27017"
	MONGO_DB_NAME = "khata"

	ENABLE_IMAGE_PREPROCESSING = true
	MAX_IMAGE_DIMENSION = 2500
	MAX_IMAGE_BYTES = 8 << 20
	MAX_KHATA_IMAGES = 5

	ROLL_NUMBER_WIDTH = 2

	AI_TIMEOUT = 90
	BREAKER_FAILURE_THRESHOLD = 5
	BREAKER_OPEN_SECONDS = 60
	RATE_LIMIT_TOKENS = 12
	RATE_LIMIT_REFILL_SECONDS = 5

	SESSION_TTL_MINUTES = 60
	ROSTER_CACHE_TTL_SECONDS = 300
}

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	OCR_PROVIDER = strings.ToLower(getEnv("OCR_PROVIDER", OCR_PROVIDER))
	GEMINI_API_KEY = getEnv("GEMINI_API_KEY", "")
	OCR_MODEL_NAME = getEnv("OCR_MODEL_NAME", OCR_MODEL_NAME)
	MISTRAL_API_KEY = getEnv("MISTRAL_API_KEY", "")
	MISTRAL_MODEL_NAME = getEnv("MISTRAL_MODEL_NAME", MISTRAL_MODEL_NAME)

	switch OCR_PROVIDER {
	case "gemini":
		if GEMINI_API_KEY == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required when OCR_PROVIDER=gemini")
		}
	case "mistral":
		if MISTRAL_API_KEY == "" {
			log.Fatal("MISTRAL_API_KEY environment variable is required when OCR_PROVIDER=mistral")
		}
	default:
		log.Fatalf("Unsupported OCR_PROVIDER %q (supported: gemini, mistral)", OCR_PROVIDER)
	}

	OCR_INPUT_PRICE_PER_MILLION = getEnvFloat("OCR_INPUT_PRICE_PER_MILLION", OCR_INPUT_PRICE_PER_MILLION)
	OCR_OUTPUT_PRICE_PER_MILLION = getEnvFloat("OCR_OUTPUT_PRICE_PER_MILLION", OCR_OUTPUT_PRICE_PER_MILLION)
	USD_TO_BDT = getEnvFloat("USD_TO_BDT", USD_TO_BDT)

	PORT = getEnv("PORT", PORT)
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", ALLOWED_ORIGINS)

	STORAGE_BACKEND = strings.ToLower(getEnv("STORAGE_BACKEND", STORAGE_BACKEND))
	MONGO_URI = getEnv("MONGO_URI", MONGO_URI)
	MONGO_DB_NAME = getEnv("MONGO_DB_NAME", MONGO_DB_NAME)

	ENABLE_IMAGE_PREPROCESSING = getEnvBool("ENABLE_IMAGE_PREPROCESSING", ENABLE_IMAGE_PREPROCESSING)
	MAX_IMAGE_DIMENSION = getEnvInt("MAX_IMAGE_DIMENSION", MAX_IMAGE_DIMENSION)
	MAX_IMAGE_BYTES = getEnvInt("MAX_IMAGE_BYTES", MAX_IMAGE_BYTES)
	MAX_KHATA_IMAGES = getEnvInt("MAX_KHATA_IMAGES", MAX_KHATA_IMAGES)

	ROLL_NUMBER_WIDTH = getEnvInt("ROLL_NUMBER_WIDTH", ROLL_NUMBER_WIDTH)

	AI_TIMEOUT = getEnvInt("AI_TIMEOUT", AI_TIMEOUT)
	BREAKER_FAILURE_THRESHOLD = getEnvInt("BREAKER_FAILURE_THRESHOLD", BREAKER_FAILURE_THRESHOLD)
	BREAKER_OPEN_SECONDS = getEnvInt("BREAKER_OPEN_SECONDS", BREAKER_OPEN_SECONDS)
	RATE_LIMIT_TOKENS = getEnvInt("RATE_LIMIT_TOKENS", RATE_LIMIT_TOKENS)
	RATE_LIMIT_REFILL_SECONDS = getEnvInt("RATE_LIMIT_REFILL_SECONDS", RATE_LIMIT_REFILL_SECONDS)

	SESSION_TTL_MINUTES = getEnvInt("SESSION_TTL_MINUTES", SESSION_TTL_MINUTES)
	ROSTER_CACHE_TTL_SECONDS = getEnvInt("ROSTER_CACHE_TTL_SECONDS", ROSTER_CACHE_TTL_SECONDS)

	log.Println("✓ Configuration loaded successfully")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

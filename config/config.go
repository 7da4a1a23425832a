package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// devJWTSecret signs tokens in development when JWT_SECRET is unset.
const devJWTSecret = "dev-only-secret"

type Config struct {
	Port        string
	Env         string
	StoreDriver string
	MongoURI    string
	DBName      string

	JWTSecret string
	JWTTTL    time.Duration
	GuestTTL  time.Duration

	RabbitMQURL     string
	OrderExchange   string
	OrderQueue      string
	CartQueue       string
	DeadLetterQueue string
	DelayExchange   string
	PaymentTimeout  time.Duration

	PaymentGatewayURL    string
	PaymentGatewayKey    string
	PaymentReturnURL     string
	PaymentWebhookSecret string

	DeliveryFee       float64
	FreeDeliveryAbove float64
	HandlingCharge    float64

	CORSOrigins []string

	AdminEmail    string
	AdminPassword string
}

// LoadEnv reads a .env file when present. Real environment variables win.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func Load() *Config {
	cfg := &Config{
		Port:        GetEnv("PORT", "8080"),
		Env:         GetEnv("APP_ENV", "production"),
		StoreDriver: GetEnv("STORE_DRIVER", "mongo"),
		MongoURI:    GetEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      GetEnv("DB_NAME", "grocery"),

		JWTSecret: getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""),
		JWTTTL:    getDuration("JWT_TTL", 24*time.Hour),
		GuestTTL:  getDuration("GUEST_TTL", 7*24*time.Hour),

		RabbitMQURL:     GetEnv("RABBITMQ_URL", ""),
		OrderExchange:   GetEnv("ORDER_EXCHANGE", "orders_exchange"),
		OrderQueue:      GetEnv("ORDER_QUEUE", "orders_queue"),
		CartQueue:       GetEnv("CART_QUEUE", "cart_commands"),
		DeadLetterQueue: GetEnv("DEAD_LETTER_QUEUE", "dead_letter_queue"),
		DelayExchange:   GetEnv("DELAY_EXCHANGE", "delay_exchange"),
		PaymentTimeout:  getDuration("PAYMENT_TIMEOUT", 15*time.Minute),

		PaymentGatewayURL:    GetEnv("PAYMENT_GATEWAY_URL", ""),
		PaymentGatewayKey:    getEnvFromFile("PAYMENT_GATEWAY_KEY_FILE", "PAYMENT_GATEWAY_KEY", ""),
		PaymentReturnURL:     GetEnv("PAYMENT_RETURN_URL", "http://localhost:3000/orders"),
		PaymentWebhookSecret: getEnvFromFile("PAYMENT_WEBHOOK_SECRET_FILE", "PAYMENT_WEBHOOK_SECRET", ""),

		DeliveryFee:       getFloat("DELIVERY_FEE", 0),
		FreeDeliveryAbove: getFloat("FREE_DELIVERY_ABOVE", 0),
		HandlingCharge:    getFloat("HANDLING_CHARGE", 2),

		CORSOrigins: splitList(GetEnv("CORS_ORIGINS", "*")),

		AdminEmail:    GetEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnvFromFile("ADMIN_PASSWORD_FILE", "ADMIN_PASSWORD", ""),
	}
	if cfg.JWTSecret == "" && cfg.Development() {
		cfg.JWTSecret = devJWTSecret
	}
	return cfg
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET or JWT_SECRET_FILE is required")
	}
	if c.JWTSecret == devJWTSecret && !c.Development() {
		return errors.New("the development JWT secret cannot be used outside development")
	}
	return nil
}

func (c *Config) Development() bool {
	return c.Env == "development"
}

func (c *Config) MessagingEnabled() bool {
	return c.RabbitMQURL != ""
}

// getEnvFromFile prefers the contents of the file named by fileKey, for
// secrets mounted by the orchestrator.
func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return GetEnv(envKey, defaultValue)
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid duration for %s: %q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		log.Printf("invalid amount for %s: %q, using %v", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

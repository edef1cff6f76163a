package config

import (
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Port        string
	MongoURI    string
	DBName      string
	JWTSecret   string
	ServiceName string

	Paymob  PaymobConfig
	Pricing PricingConfig

	WebhookRequireSignature bool

	RedisAddr    string
	KafkaBrokers []string

	LogLevel  string
	LogFormat string
}

// PaymobConfig holds the hosted card gateway credentials. An empty APIKey
// disables the card path.
type PaymobConfig struct {
	BaseURL       string
	APIKey        string
	IntegrationID string
	IframeID      string
	HMACSecret    string
	Timeout       time.Duration
	PaymentKeyTTL time.Duration
}

type PricingConfig struct {
	Currency    string
	ShippingFee float64
	CODFee      float64
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	return Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		MongoURI:    getEnvOrDefault("MONGO_URI", ""),
		DBName:      getEnvOrDefault("DB_NAME", "storefront"),
		JWTSecret:   getEnvOrDefault("JWT_SECRET", ""),
		ServiceName: getEnvOrDefault("SERVICE_NAME", "storefront-api"),
		Paymob: PaymobConfig{
			BaseURL:       getEnvOrDefault("PAYMOB_BASE_URL", "https://accept.paymob.com"),
			APIKey:        getEnvOrDefault("PAYMOB_API_KEY", ""),
			IntegrationID: getEnvOrDefault("PAYMOB_INTEGRATION_ID", ""),
			IframeID:      getEnvOrDefault("PAYMOB_IFRAME_ID", ""),
			HMACSecret:    getEnvOrDefault("PAYMOB_HMAC_SECRET", ""),
			Timeout:       getDurationEnv("PAYMOB_TIMEOUT", 5, time.Second),
			PaymentKeyTTL: getDurationEnv("PAYMOB_PAYMENT_KEY_TTL", 3600, time.Second),
		},
		Pricing: PricingConfig{
			Currency:    getEnvOrDefault("CURRENCY", "EGP"),
			ShippingFee: getFloatEnv("SHIPPING_FEE", 50),
			CODFee:      getFloatEnv("COD_FEE", 10),
		},
		WebhookRequireSignature: getBoolEnv("WEBHOOK_REQUIRE_SIGNATURE", false),
		RedisAddr:               getEnvOrDefault("REDIS_ADDR", ""),
		KafkaBrokers:            splitCSV(getEnvOrDefault("KAFKA_BROKERS", "")),
		LogLevel:                getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:               getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

// ConfigureLogging applies the level and formatter to the standard logrus logger.
func ConfigureLogging(cfg Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultAPIURL        = "https://chapchappay.com/api/ecommerce/create"
	defaultMinimumAmount = 5000
	defaultCurrency      = "GNF"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	ShopName   string

	CCPAPIKey        string
	CCPEncryptionKey string
	CCPAPIURL        string
	CCPEnabled       bool

	NotifyURL string
	ReturnURL string
	CancelURL string

	JWTSecret string

	MinimumAmount float64
	Currency      string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    os.Getenv("APP_PORT"),
		AppEnv:     os.Getenv("APP_ENV"),
		ShopName:   os.Getenv("SHOP_NAME"),

		CCPAPIKey:        os.Getenv("CCP_API_KEY"),
		CCPEncryptionKey: os.Getenv("CCP_ENCRYPTION_KEY"),
		CCPAPIURL:        os.Getenv("CCP_API_URL"),
		CCPEnabled:       os.Getenv("CCP_ENABLED") != "false",

		NotifyURL: os.Getenv("CCP_NOTIFY_URL"),
		ReturnURL: os.Getenv("CCP_RETURN_URL"),
		CancelURL: os.Getenv("CCP_CANCEL_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		MinimumAmount: defaultMinimumAmount,
		Currency:      defaultCurrency,
	}

	if cfg.CCPAPIURL == "" {
		cfg.CCPAPIURL = defaultAPIURL
	}

	if v := os.Getenv("CCP_MINIMUM_AMOUNT"); v != "" {
		min, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Fatalf("Invalid CCP_MINIMUM_AMOUNT: %v", err)
		}
		cfg.MinimumAmount = min
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

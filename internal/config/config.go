package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings, sourced from the environment with a
// .env file loaded first when present.
type Config struct {
	Port               string
	DBPath             string
	SettlementInterval time.Duration
	ReconInterval      time.Duration
	BatchSize          int
	ConnectorTimeout   time.Duration
	ReclaimAfter       time.Duration
	FuzzyToleranceBps  int64
	KafkaBrokers       []string
	KafkaTopic         string
}

func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "treasury.db"),
		SettlementInterval: getDuration("SETTLEMENT_INTERVAL", 5*time.Second),
		ReconInterval:      getDuration("RECON_INTERVAL", 5*time.Minute),
		BatchSize:          getInt("SETTLEMENT_BATCH_SIZE", 50),
		ConnectorTimeout:   getDuration("CONNECTOR_TIMEOUT", 30*time.Second),
		ReclaimAfter:       getDuration("SETTLEMENT_RECLAIM_AFTER", 10*time.Minute),
		FuzzyToleranceBps:  int64(getInt("FUZZY_TOLERANCE_BPS", 50)),
		KafkaBrokers:       getList("KAFKA_BROKERS"),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "treasury.payouts"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

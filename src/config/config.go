package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RPCURL        string
	ChainID       uint64
	PrivateKey    string
	CrowdfundAddr string
	LendingAddr   string
	StartBlock    uint64

	MySQLDSN string
	RedisURL string

	JWTSecret  string
	AdminToken string
	Port       string

	PollInterval   time.Duration
	ConfirmTimeout time.Duration

	// Proposal probing fallback bounds, used only when the event index has
	// no rows for the entity.
	ProbeCeiling   int
	ProbeMissLimit int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func getuint(key, def string) uint64 {
	v, err := strconv.ParseUint(getenv(key, def), 10, 64)
	if err != nil {
		log.Fatalf("env %s: %v", key, err)
	}
	return v
}

func getint(key, def string) int {
	v, err := strconv.Atoi(getenv(key, def))
	if err != nil {
		log.Fatalf("env %s: %v", key, err)
	}
	return v
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		RPCURL:         getenv("RPC_URL", "https://rpc.sepolia.org"),
		ChainID:        getuint("CHAIN_ID", "11155111"),
		PrivateKey:     getenv("PRIVATE_KEY", ""),
		CrowdfundAddr:  getenv("CROWDFUND_ADDR", ""),
		LendingAddr:    getenv("LENDING_ADDR", ""),
		StartBlock:     getuint("START_BLOCK", "1"),
		MySQLDSN:       getenv("MYSQL_DSN", "chainfund:chainfund@tcp(127.0.0.1:3306)/chainfund"),
		RedisURL:       getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JWTSecret:      getenv("JWT_SECRET", ""),
		AdminToken:     getenv("ADMIN_TOKEN", ""),
		Port:           getenv("PORT", "8080"),
		PollInterval:   time.Duration(getint("POLL_INTERVAL", "15")) * time.Second,
		ConfirmTimeout: time.Duration(getint("CONFIRM_TIMEOUT", "120")) * time.Second,
		ProbeCeiling:   getint("PROBE_CEILING", "200"),
		ProbeMissLimit: getint("PROBE_MISS_LIMIT", "10"),
	}
}

package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "strconv"
    "time"

    "github.com/joho/godotenv"

    "github.com/iliyamo/cinema-booking-client/internal/booking"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env  string // application environment (e.g. "dev", "prod")
    Port string // HTTP port to listen on

    BookingAPIURL     string        // base URL of the booking REST API
    BookingAPITimeout time.Duration // per-request timeout towards the booking API

    JWTSecret    string // secret used to verify (and, in dev, sign) access tokens
    AccessTTLMin int    // lifetime of dev tokens minted by cmd/devtoken

    Prices             booking.PriceTable // unit price per tier
    MaxSeatsPerBooking int                // 0 means unlimited
    DegradeOnLoadFail  bool               // open sessions even when availability cannot be loaded
    SessionIdleTTL     time.Duration      // idle sessions are closed after this long
    SessionSweepEvery  time.Duration
    MaxSessionsPerUser int                // 0 means unlimited

    // Receipt ledger.  The ledger is disabled when DBHost is empty.
    DBUser string
    DBPass string
    DBHost string
    DBPort string
    DBName string

    RabbitURL  string // broker for confirmation events; empty disables publishing
    ConsumeLog bool   // run the confirmation log consumer in-process
    LogDir     string // directory the consumer appends booking.log to
}

// Load reads configuration values from the environment, after loading a
// .env file when one is present.  Required variables are enforced by
// must() and missing values cause the program to exit.
func Load() Config {
    _ = godotenv.Load() // optional; real environment wins

    return Config{
        Env:  getenv("APP_ENV", "dev"),
        Port: getenv("APP_PORT", "8080"),

        BookingAPIURL:     must("BOOKING_API_URL"),
        BookingAPITimeout: envDur("BOOKING_API_TIMEOUT", 10*time.Second),

        JWTSecret:    must("JWT_SECRET"),
        AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),

        Prices: booking.PriceTable{
            booking.TierRegular: mustPositive("PRICE_REGULAR", 150),
            booking.TierPremium: mustPositive("PRICE_PREMIUM", 200),
            booking.TierVIP:     mustPositive("PRICE_VIP", 300),
        },
        MaxSeatsPerBooking: envInt("MAX_SEATS_PER_BOOKING", 10),
        DegradeOnLoadFail:  envBool("DEGRADE_ON_AVAILABILITY_FAILURE", false),
        SessionIdleTTL:     envDur("SESSION_IDLE_TTL", 15*time.Minute),
        SessionSweepEvery:  envDur("SESSION_SWEEP_INTERVAL", time.Minute),
        MaxSessionsPerUser: envInt("MAX_SESSIONS_PER_USER", 5),

        DBUser: getenv("DB_USER", "root"),
        DBPass: os.Getenv("DB_PASS"), // empty allowed
        DBHost: os.Getenv("DB_HOST"),
        DBPort: getenv("DB_PORT", "3306"),
        DBName: getenv("DB_NAME", "cinema_client"),

        RabbitURL:  rabbitURL(),
        ConsumeLog: envBool("BOOKING_LOG_CONSUMER", false),
        LogDir:     getenv("BOOKING_LOG_DIR", "logs"),
    }
}

// rabbitURL honours both spellings used by deployments.
func rabbitURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustPositive reads an optional integer that must be > 0 when set.
func mustPositive(key string, def int) int {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil || n <= 0 {
        log.Fatalf("invalid positive int for %s: %q", key, s)
    }
    return n
}

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	BlobModeLocal = "local"
	BlobModeS3    = "s3"
	BlobModeAuto  = "auto"
)

const (
	AIModeMock   = "mock"
	AIModeOpenAI = "openai"
	AIModeGemini = "gemini"
)

const (
	AuthModeNone = "none"
	AuthModeDev  = "dev"
	AuthModeJWT  = "jwt"
)

// Unknown goal handling. Strict rejects the request, legacy passes the
// dataset through unfiltered like the first version of the service did.
const (
	GoalPolicyStrict = "strict"
	GoalPolicyLegacy = "legacy"
)

const (
	CategoryMatchSubstring = "substring"
	CategoryMatchPrefix    = "prefix"
)

// DefaultExcludedCategories are the food groups never offered as candidates:
// breads/snacks, beverages/tea and dairy/frozen desserts.
var DefaultExcludedCategories = []string{"빵 및 과자", "음료 및 차류", "유제품류 및 빙과류"}

type S3Config struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKeyID       string
	SecretAccessKey   string
	PresignTTLSeconds int
}

func (c S3Config) MissingRequired() []string {
	missing := make([]string, 0, 5)
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "S3_ENDPOINT")
	}
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "S3_REGION")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "S3_ACCESS_KEY_ID")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "S3_SECRET_ACCESS_KEY")
	}
	return missing
}

func (c S3Config) IsConfigured() bool {
	return len(c.MissingRequired()) == 0
}

func (c S3Config) Diagnostics() (level string, code string, msg string) {
	allEmpty := strings.TrimSpace(c.Endpoint) == "" &&
		strings.TrimSpace(c.Region) == "" &&
		strings.TrimSpace(c.Bucket) == "" &&
		strings.TrimSpace(c.AccessKeyID) == "" &&
		strings.TrimSpace(c.SecretAccessKey) == ""

	if allEmpty {
		return "info", "s3_not_configured", "not configured (all empty)"
	}

	missing := c.MissingRequired()
	if len(missing) > 0 {
		return "warn", "s3_partial_config", fmt.Sprintf("partial config, missing=%v", missing)
	}

	return "info", "s3_ready", "ready"
}

// DiagnosticsSummary returns a detailed summary for logging (no secrets)
func (c S3Config) DiagnosticsSummary() string {
	return fmt.Sprintf("endpoint=%s region=%s bucket=%s presign_ttl=%ds access_key_id=%s secret_access_key=%s",
		nonEmptyOrDash(c.Endpoint),
		nonEmptyOrDash(c.Region),
		nonEmptyOrDash(c.Bucket),
		c.PresignTTLSeconds,
		SetOrNot(c.AccessKeyID),
		SetOrNot(c.SecretAccessKey),
	)
}

type BlobConfig struct {
	Mode string // local|s3|auto
	S3   S3Config
}

// Config holds the service configuration resolved from the environment.
type Config struct {
	Env       string // local | staging | production
	Port      int
	LogLevel  string
	LogFormat string // json | console

	// Food dataset
	FoodsCSVPath       string
	ExcludedCategories []string
	CategoryMatch      string

	// Recommendation
	UnknownGoalPolicy string
	SampleSize        int
	RandomSeed        uint64 // 0 = seeded from the clock
	FilterCacheSize   int

	// Database (recommendation history)
	DatabaseURL       string // runtime connection (resolved: pooled > url > direct)
	DatabaseURLRaw    string
	DatabaseURLPooled string
	DatabaseURLDirect string
	SQLitePath        string

	RunMigrationsOnStartup bool

	// CORS
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	// Rate Limiting
	RateLimitRPS   int
	RateLimitBurst int

	Blob BlobConfig

	// Reports
	PDFFontPath string

	// Authentication
	AuthMode      string // none | dev | jwt
	AuthRequired  bool
	JWTSecret     string
	JWTIssuer     string
	JWTTTLMinutes int

	// AI
	AIMode            string // mock | openai | gemini
	AIMaxOutputTokens int
	AITemperature     float64
	AITimeoutSeconds  int
	AIMaxRetries      int
	OpenAIAPIKey      string
	OpenAIModel       string
	GeminiAPIKey      string
	GeminiModel       string
}

// Load reads the configuration from environment variables.
func Load() *Config {
	// APP_ENV (fallback to ENV, default: local)
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env == "" {
		env = "local"
	}

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	logLevel := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if logLevel == "" {
		logLevel = "debug"
	}
	logFormat := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if logFormat == "" {
		if env == "local" {
			logFormat = "console"
		} else {
			logFormat = "json"
		}
	}

	// ---------- Dataset ----------
	// CSV_PATH is what the first deployment used.
	foodsCSVPath := strings.TrimSpace(os.Getenv("FOODS_CSV_PATH"))
	if foodsCSVPath == "" {
		foodsCSVPath = strings.TrimSpace(os.Getenv("CSV_PATH"))
	}

	excluded := parseList(os.Getenv("FOODS_EXCLUDED_CATEGORIES"))
	if len(excluded) == 0 {
		excluded = append([]string(nil), DefaultExcludedCategories...)
	}

	categoryMatch := parseEnum("CATEGORY_MATCH", CategoryMatchSubstring, CategoryMatchSubstring, CategoryMatchPrefix)

	// ---------- Recommendation ----------
	goalPolicy := parseEnum("UNKNOWN_GOAL_POLICY", GoalPolicyStrict, GoalPolicyStrict, GoalPolicyLegacy)

	sampleSize := envInt("RECOMMEND_SAMPLE_SIZE", 3)
	if sampleSize <= 0 || sampleSize > 3 {
		sampleSize = 3
	}

	var seed uint64
	if s := strings.TrimSpace(os.Getenv("RECOMMEND_SEED")); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			log.Warn().Str("value", s).Msg("config: invalid RECOMMEND_SEED, using clock seed")
		} else {
			seed = v
		}
	}

	filterCacheSize := envInt("FILTER_CACHE_SIZE", 256)
	if filterCacheSize < 0 {
		filterCacheSize = 0
	}

	// ---------- Database ----------
	// Priority: DATABASE_URL_POOLED > DATABASE_URL > DATABASE_URL_DIRECT
	dbPooled := strings.TrimSpace(os.Getenv("DATABASE_URL_POOLED"))
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	dbDirect := strings.TrimSpace(os.Getenv("DATABASE_URL_DIRECT"))

	runtimeDB := dbPooled
	if runtimeDB == "" {
		runtimeDB = dbURL
	}
	if runtimeDB == "" {
		runtimeDB = dbDirect
	}

	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))

	runMigrationsOnStartup := parseBoolEnv("RUN_MIGRATIONS_ON_STARTUP")

	// ---------- CORS ----------
	corsOrigins := parseCORSOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"), env)
	corsAllowCreds := parseBoolEnv("CORS_ALLOW_CREDENTIALS")

	// ---------- Rate Limiting ----------
	rateLimitRPS := envInt("RATE_LIMIT_RPS", 0)
	rateLimitBurst := envInt("RATE_LIMIT_BURST", 0)

	// ---------- Blob / S3 ----------
	blobMode := parseEnum("BLOB_MODE", BlobModeLocal, BlobModeLocal, BlobModeS3, BlobModeAuto)

	s3PresignTTL := envInt("S3_PRESIGN_TTL_SECONDS", 900)
	if s3PresignTTL <= 0 {
		s3PresignTTL = 900
	}

	blobCfg := BlobConfig{
		Mode: blobMode,
		S3: S3Config{
			Endpoint:          strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			Region:            strings.TrimSpace(os.Getenv("S3_REGION")),
			Bucket:            strings.TrimSpace(os.Getenv("S3_BUCKET")),
			AccessKeyID:       strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
			SecretAccessKey:   strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY")),
			PresignTTLSeconds: s3PresignTTL,
		},
	}

	pdfFontPath := strings.TrimSpace(os.Getenv("PDF_FONT_PATH"))

	// ---------- Auth ----------
	authMode := parseEnum("AUTH_MODE", AuthModeNone, AuthModeNone, AuthModeDev, AuthModeJWT)
	authRequired := authMode != AuthModeNone && parseBoolEnv("AUTH_REQUIRED")

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "change_me"
	}
	if jwtSecret == "change_me" && env != "local" && authMode != AuthModeNone {
		log.Warn().Msg("config: JWT_SECRET is set to 'change_me' in non-local environment")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "meal-recommender"
	}

	// JWT_TTL_MINUTES (default: 10080 = 7 days)
	jwtTTLMinutes := envInt("JWT_TTL_MINUTES", 10080)
	if jwtTTLMinutes <= 0 {
		jwtTTLMinutes = 10080
	}

	// ---------- AI ----------
	aiMode := parseEnum("AI_MODE", AIModeMock, AIModeMock, AIModeOpenAI, AIModeGemini)

	aiMaxOutputTokens := envInt("AI_MAX_OUTPUT_TOKENS", 1200)
	if aiMaxOutputTokens <= 0 {
		aiMaxOutputTokens = 1200
	}

	aiTemperature := envFloat("AI_TEMPERATURE", 0.4)
	if aiTemperature < 0 {
		aiTemperature = 0
	}
	if aiTemperature > 2 {
		aiTemperature = 2
	}

	aiTimeoutSeconds := envInt("AI_TIMEOUT_SECONDS", 30)
	if aiTimeoutSeconds <= 0 {
		aiTimeoutSeconds = 30
	}

	aiMaxRetries := envInt("AI_MAX_RETRIES", 2)
	if aiMaxRetries < 0 {
		aiMaxRetries = 0
	}

	openAIAPIKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	openAIModel := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if openAIModel == "" {
		openAIModel = "gpt-4.1-mini"
	}

	geminiAPIKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	geminiModel := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if geminiModel == "" {
		geminiModel = "gemini-2.5-flash"
	}

	if aiMode == AIModeOpenAI && openAIAPIKey == "" {
		log.Fatal().Msg("OPENAI_API_KEY is required when AI_MODE=openai")
	}
	if aiMode == AIModeGemini && geminiAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is required when AI_MODE=gemini")
	}

	return &Config{
		Env:       env,
		Port:      port,
		LogLevel:  logLevel,
		LogFormat: logFormat,

		FoodsCSVPath:       foodsCSVPath,
		ExcludedCategories: excluded,
		CategoryMatch:      categoryMatch,

		UnknownGoalPolicy: goalPolicy,
		SampleSize:        sampleSize,
		RandomSeed:        seed,
		FilterCacheSize:   filterCacheSize,

		DatabaseURL:       runtimeDB,
		DatabaseURLRaw:    dbURL,
		DatabaseURLPooled: dbPooled,
		DatabaseURLDirect: dbDirect,
		SQLitePath:        sqlitePath,

		RunMigrationsOnStartup: runMigrationsOnStartup,

		CORSAllowedOrigins:   corsOrigins,
		CORSAllowCredentials: corsAllowCreds,

		RateLimitRPS:   rateLimitRPS,
		RateLimitBurst: rateLimitBurst,

		Blob:        blobCfg,
		PDFFontPath: pdfFontPath,

		AuthMode:      authMode,
		AuthRequired:  authRequired,
		JWTSecret:     jwtSecret,
		JWTIssuer:     jwtIssuer,
		JWTTTLMinutes: jwtTTLMinutes,

		AIMode:            aiMode,
		AIMaxOutputTokens: aiMaxOutputTokens,
		AITemperature:     aiTemperature,
		AITimeoutSeconds:  aiTimeoutSeconds,
		AIMaxRetries:      aiMaxRetries,
		OpenAIAPIKey:      openAIAPIKey,
		OpenAIModel:       openAIModel,
		GeminiAPIKey:      geminiAPIKey,
		GeminiModel:       geminiModel,
	}
}

// parseCORSOrigins parses CORS_ALLOWED_ORIGINS env var.
// In local mode, defaults to localhost origins if empty.
func parseCORSOrigins(raw, env string) []string {
	origins := parseList(raw)
	if len(origins) == 0 && env == "local" {
		return []string{"http://localhost:3000", "http://localhost:8081"}
	}
	return origins
}

// parseList splits a comma separated env value, dropping empty entries.
func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseEnum reads a lower-cased env value and falls back to defaultVal when it
// is empty or not one of allowed.
func parseEnum(key string, defaultVal string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	log.Warn().Str("key", key).Str("value", v).Str("fallback", defaultVal).Msg("config: unknown value")
	return defaultVal
}

// envInt reads an int env var with a default value.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

// SetOrNot masks a secret for logs.
func SetOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}

func nonEmptyOrDash(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	return v
}

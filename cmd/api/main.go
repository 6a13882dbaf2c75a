package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fdg312/meal-recommender/internal/ai"
	"github.com/fdg312/meal-recommender/internal/auth"
	"github.com/fdg312/meal-recommender/internal/blob"
	"github.com/fdg312/meal-recommender/internal/config"
	"github.com/fdg312/meal-recommender/internal/dbmigrate"
	"github.com/fdg312/meal-recommender/internal/foods"
	"github.com/fdg312/meal-recommender/internal/httpserver"
	"github.com/fdg312/meal-recommender/internal/logging"
	"github.com/fdg312/meal-recommender/internal/mealplans"
	"github.com/fdg312/meal-recommender/internal/nutrition"
	"github.com/fdg312/meal-recommender/internal/reports"
	"github.com/fdg312/meal-recommender/internal/storage"
	"github.com/fdg312/meal-recommender/internal/storage/memory"
	"github.com/fdg312/meal-recommender/internal/storage/postgres"
	"github.com/fdg312/meal-recommender/internal/storage/sqlite"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	printStartupBanner(logger, cfg)
	validateProductionConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatal().Err(err).Msg("FATAL")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	blobStore, blobMode, err := blob.NewBlobStore(cfg.Blob, logger)
	if err != nil {
		return err
	}

	dataset, err := loadDataset(ctx, cfg, blobStore)
	if err != nil {
		return err
	}
	logger.Info().
		Str("source", dataset.Source()).
		Int("items", dataset.Len()).
		Strs("excluded_categories", cfg.ExcludedCategories).
		Msg("food dataset loaded")

	// The exclusion view never changes after startup.
	view := dataset.Excluding(foods.NewMatcher(cfg.CategoryMatch, cfg.ExcludedCategories))
	logger.Info().Int("items", len(view)).Str("match", cfg.CategoryMatch).Msg("candidate pool ready")

	var filterer nutrition.Filterer = nutrition.StaticFilter{
		Items:  view,
		Policy: nutrition.GoalPolicy(cfg.UnknownGoalPolicy),
	}
	filterer, err = nutrition.NewCachedFilter(filterer, cfg.FilterCacheSize)
	if err != nil {
		return fmt.Errorf("filter cache: %w", err)
	}
	selector := nutrition.NewSelector(filterer, nutrition.NewRand(cfg.RandomSeed), cfg.SampleSize)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}

	provider := ai.NewProvider(cfg, logger)
	mealPlans := mealplans.NewService(selector, provider, store, blobStore, time.Duration(cfg.AITimeoutSeconds)*time.Second, logger)

	generator, err := reports.NewGenerator(cfg.PDFFontPath)
	if err != nil {
		return err
	}
	if !generator.UTF8() {
		logger.Warn().Msg("reports: PDF_FONT_PATH not set, Korean text will not render in PDFs")
	}
	reportsService := reports.NewService(store, blobStore, generator, cfg.Blob.S3.PresignTTLSeconds, logger)

	deps := httpserver.Deps{
		Storage:   store,
		Dataset:   dataset,
		MealPlans: mealPlans,
		Reports:   reportsService,
	}
	if cfg.AuthMode != config.AuthModeNone {
		deps.Auth = auth.NewService(cfg)
	}

	logger.Info().Str("blob_mode", blobMode).Str("ai_mode", cfg.AIMode).Msg("services ready")

	server := httpserver.New(cfg, deps, logger)
	defer func() {
		if err := server.Close(); err != nil {
			logger.Warn().Err(err).Msg("storage close failed")
		}
	}()

	return server.Start(ctx)
}

// loadDataset reads FOODS_CSV_PATH from disk, or from the bucket for s3:// paths.
func loadDataset(ctx context.Context, cfg *config.Config, blobStore blob.Store) (*foods.Dataset, error) {
	if cfg.FoodsCSVPath == "" {
		return nil, errors.New("FOODS_CSV_PATH is not set")
	}

	if key, ok := blob.ParseURI(cfg.FoodsCSVPath); ok {
		if blobStore == nil {
			return nil, fmt.Errorf("FOODS_CSV_PATH=%s requires BLOB_MODE=s3 or auto with S3 configured", cfg.FoodsCSVPath)
		}
		loadCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		return foods.LoadObject(loadCtx, blobStore, key)
	}
	return foods.LoadFile(cfg.FoodsCSVPath)
}

// openStorage picks postgres, then sqlite, then memory.
func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Storage, error) {
	switch {
	case cfg.DatabaseURL != "":
		if cfg.RunMigrationsOnStartup {
			dsn, source, _, err := dbmigrate.SelectDatabaseURL(cfg, true)
			if err != nil {
				return nil, fmt.Errorf("startup migrations: %w", err)
			}
			logger.Info().Str("using", source).Msg("startup migrations: command=up")
			if err := dbmigrate.Run(ctx, dbmigrate.CommandUp, dbmigrate.DialectPostgres, dsn); err != nil {
				return nil, fmt.Errorf("startup migrations failed: %w", err)
			}
			logger.Info().Msg("startup migrations: completed")
		}

		logger.Info().Msg("storage: connecting to PostgreSQL")
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return store, nil

	case cfg.SQLitePath != "":
		logger.Info().Str("path", cfg.SQLitePath).Msg("storage: using SQLite")
		store, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return store, nil

	default:
		logger.Info().Msg("storage: using in-memory history")
		return memory.New(), nil
	}
}

// printStartupBanner logs a one-time summary of the resolved configuration.
// Secrets only appear as "set" / "not set".
func printStartupBanner(logger zerolog.Logger, cfg *config.Config) {
	logger.Info().
		Str("env", cfg.Env).
		Int("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Msg("========== Meal Recommender API ==========")

	logger.Info().
		Str("foods_csv_path", nonEmptyOrDash(cfg.FoodsCSVPath)).
		Str("category_match", cfg.CategoryMatch).
		Str("unknown_goal_policy", cfg.UnknownGoalPolicy).
		Int("sample_size", cfg.SampleSize).
		Bool("seeded", cfg.RandomSeed != 0).
		Int("filter_cache_size", cfg.FilterCacheSize).
		Msg("---- recommendation ----")

	logger.Info().
		Str("runtime_url", describeDBURL(cfg.DatabaseURL, cfg.DatabaseURLPooled)).
		Str("pooled", config.SetOrNot(cfg.DatabaseURLPooled)).
		Str("direct", config.SetOrNot(cfg.DatabaseURLDirect)).
		Str("sqlite_path", nonEmptyOrDash(cfg.SQLitePath)).
		Bool("migrations_on_startup", cfg.RunMigrationsOnStartup).
		Msg("---- database ----")

	logger.Info().
		Str("auth_mode", cfg.AuthMode).
		Bool("auth_required", cfg.AuthRequired).
		Str("jwt_secret", secretStatus(cfg.JWTSecret, "change_me")).
		Msg("---- auth ----")

	ev := logger.Info().Str("blob_mode", cfg.Blob.Mode)
	if cfg.Blob.Mode != config.BlobModeLocal {
		ev = ev.Str("s3", cfg.Blob.S3.DiagnosticsSummary())
	}
	ev.Str("pdf_font", nonEmptyOrDash(cfg.PDFFontPath)).Msg("---- blob ----")

	ev = logger.Info().Str("ai_mode", cfg.AIMode).Int("timeout_seconds", cfg.AITimeoutSeconds)
	switch cfg.AIMode {
	case config.AIModeOpenAI:
		ev = ev.Str("openai_model", cfg.OpenAIModel).Str("openai_api_key", config.SetOrNot(cfg.OpenAIAPIKey))
	case config.AIModeGemini:
		ev = ev.Str("gemini_model", cfg.GeminiModel).Str("gemini_api_key", config.SetOrNot(cfg.GeminiAPIKey)).Int("max_retries", cfg.AIMaxRetries)
	}
	ev.Msg("---- ai ----")
}

// validateProductionConfig performs fatal checks that only matter in non-local envs.
func validateProductionConfig(cfg *config.Config) {
	isProd := cfg.Env == "production" || cfg.Env == "staging"

	if cfg.Blob.Mode == config.BlobModeS3 {
		if missing := cfg.Blob.S3.MissingRequired(); len(missing) > 0 {
			log.Fatal().Msgf("FATAL blob: BLOB_MODE is 's3' but S3 config is incomplete, missing: %s", strings.Join(missing, ", "))
		}
	}

	// JWT_SECRET must not be default in production
	if isProd && cfg.AuthRequired && cfg.JWTSecret == "change_me" {
		log.Fatal().Msgf("FATAL auth: JWT_SECRET must not be 'change_me' in %s with AUTH_REQUIRED=1", cfg.Env)
	}

	if isProd && cfg.AuthMode == config.AuthModeDev {
		log.Fatal().Msgf("FATAL auth: AUTH_MODE=dev is not allowed in %s", cfg.Env)
	}

	if isProd && cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		log.Warn().Msgf("db: no DATABASE_URL or SQLITE_PATH in %s, history is kept in memory", cfg.Env)
	}
}

// ---- helpers (no secrets) ----

func nonEmptyOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func secretStatus(v, insecureDefault string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "not set"
	}
	if v == insecureDefault {
		return fmt.Sprintf("set (DEFAULT, insecure '%s')", insecureDefault)
	}
	return "set (custom)"
}

func describeDBURL(runtime, pooled string) string {
	if runtime == "" {
		return "not set"
	}
	if pooled != "" && runtime == pooled {
		return "set (via DATABASE_URL_POOLED)"
	}
	return "set"
}

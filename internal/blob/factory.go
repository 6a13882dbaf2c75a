package blob

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	appcfg "github.com/fdg312/meal-recommender/internal/config"
)

// NewBlobStore builds a blob store using mode local|s3|auto.
// Local mode returns a nil Store: PDFs are streamed and datasets read from disk.
func NewBlobStore(cfg appcfg.BlobConfig, logger zerolog.Logger) (Store, string, error) {
	log := logger.With().Str("component", "blob").Logger()

	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = appcfg.BlobModeLocal
	}

	switch mode {
	case appcfg.BlobModeLocal:
		log.Info().Str("mode", "local").Msg("blob: mode=local (forced)")
		return nil, appcfg.BlobModeLocal, nil

	case appcfg.BlobModeAuto:
		if !cfg.S3.IsConfigured() {
			level, code, msg := cfg.S3.Diagnostics()
			log.WithLevel(parseLevel(level)).Str("code", code).Msg("blob.s3: " + msg)
			log.Info().Msg("blob.s3: " + cfg.S3.DiagnosticsSummary())
			log.Info().Str("mode", "local").Msg("blob: mode=local (auto, S3 not configured)")
			return nil, appcfg.BlobModeLocal, nil
		}

		log.Info().Str("code", "s3_ready").Msg("blob.s3: " + cfg.S3.DiagnosticsSummary())
		store, err := newS3FromConfig(cfg.S3)
		if err != nil {
			log.Warn().Err(err).Msg("blob.s3: init failed, fallback=local")
			return nil, appcfg.BlobModeLocal, nil
		}

		log.Info().Str("mode", "s3").Msg("blob: mode=s3 (auto, configured)")
		return store, appcfg.BlobModeS3, nil

	case appcfg.BlobModeS3:
		if !cfg.S3.IsConfigured() {
			missing := cfg.S3.MissingRequired()
			log.Error().Str("code", "s3_config_incomplete").Strs("missing", missing).Msg("blob.s3: " + cfg.S3.DiagnosticsSummary())
			return nil, "", fmt.Errorf("BLOB_MODE=s3 requested but missing required config: %s", strings.Join(missing, ", "))
		}

		log.Info().Str("code", "s3_ready").Msg("blob.s3: " + cfg.S3.DiagnosticsSummary())
		store, err := newS3FromConfig(cfg.S3)
		if err != nil {
			log.Error().Err(err).Msg("blob.s3: init failed")
			return nil, "", fmt.Errorf("BLOB_MODE=s3 init failed: %w", err)
		}

		log.Info().Str("mode", "s3").Msg("blob: mode=s3 (forced)")
		return store, appcfg.BlobModeS3, nil

	default:
		return nil, "", fmt.Errorf("unsupported blob mode: %s", mode)
	}
}

func newS3FromConfig(c appcfg.S3Config) (*S3Store, error) {
	return NewS3Store(c.Endpoint, c.Region, c.Bucket, c.AccessKeyID, c.SecretAccessKey)
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}

package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/dental-scheduling-agent/internal/archive"
	appconfig "github.com/wolfman30/dental-scheduling-agent/internal/config"
	"github.com/wolfman30/dental-scheduling-agent/internal/conversation"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

// BuildArchiver returns the S3 transcript archive, or nil when no bucket is
// configured or AWS cannot be loaded.
func BuildArchiver(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) conversation.Archiver {
	if cfg == nil || strings.TrimSpace(cfg.ArchiveS3Bucket) == "" || loadAWS == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	awsCfg, err := loadAWS(ctx)
	if err != nil {
		logger.Warn("transcript archive disabled", "error", err)
		return nil
	}
	logger.Info("transcript archive ready", "bucket", cfg.ArchiveS3Bucket)
	return archive.NewStore(s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// LocalStack serves buckets by path.
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	}), cfg.ArchiveS3Bucket, logger)
}

package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-scheduling-agent/internal/bookings"
	appconfig "github.com/wolfman30/dental-scheduling-agent/internal/config"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

// AWSConfigLoader resolves the shared AWS configuration on first use, so
// deployments without AWS backends never touch the credential chain.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildWriteLocker serializes schedule writes in process and, when Redis is
// available, across every replica sharing it.
func BuildWriteLocker(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) bookings.Locker {
	local := bookings.NewLocalLocker()
	if redisClient == nil {
		return local
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("distributed write lock enabled", "ttl", cfg.WriteLockTTL)
	return bookings.ChainLocker{local, bookings.NewRedisLocker(redisClient, "", cfg.WriteLockTTL)}
}

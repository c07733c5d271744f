package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/api/option"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
	appconfig "github.com/wolfman30/dental-scheduling-agent/internal/config"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

// BuildScheduleStore opens the configured schedule backend. The returned
// cleanup releases its connections and is never nil.
func BuildScheduleStore(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger, sheetsOpts ...option.ClientOption) (appointments.Store, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() {}

	switch cfg.ScheduleStore {
	case appconfig.StoreMemory:
		logger.Warn("using in-memory schedule; appointments are lost on restart")
		return appointments.NewMemoryStore(), noop, nil

	case appconfig.StoreSheets, "":
		if strings.TrimSpace(cfg.SheetsSpreadsheetID) == "" {
			return nil, nil, fmt.Errorf("bootstrap: SHEETS_SPREADSHEET_ID is required for the sheets store")
		}
		if len(sheetsOpts) == 0 {
			sheetsOpts = []option.ClientOption{option.WithCredentialsFile(cfg.GoogleCredentialsFile)}
		}
		store, err := appointments.NewSheetsStore(ctx, appointments.SheetsConfig{
			SpreadsheetID: cfg.SheetsSpreadsheetID,
			Worksheet:     cfg.SheetsWorksheet,
		}, logger, sheetsOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: open sheets store: %w", err)
		}
		if err := store.EnsureHeader(ctx); err != nil {
			return nil, nil, fmt.Errorf("bootstrap: prepare sheets header: %w", err)
		}
		logger.Info("schedule store ready", "backend", "sheets", "worksheet", cfg.SheetsWorksheet)
		return store, noop, nil

	case appconfig.StorePostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, nil, fmt.Errorf("bootstrap: DATABASE_URL is required for the postgres store")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		logger.Info("schedule store ready", "backend", "postgres")
		return appointments.NewPostgresStore(pool), pool.Close, nil

	case appconfig.StoreDynamo:
		if strings.TrimSpace(cfg.DynamoAppointmentsTable) == "" {
			return nil, nil, fmt.Errorf("bootstrap: DYNAMO_APPOINTMENTS_TABLE is required for the dynamodb store")
		}
		if loadAWS == nil {
			return nil, nil, fmt.Errorf("bootstrap: aws config loader is required for the dynamodb store")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		logger.Info("schedule store ready", "backend", "dynamodb", "table", cfg.DynamoAppointmentsTable)
		return appointments.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoAppointmentsTable), noop, nil
	}
	return nil, nil, fmt.Errorf("bootstrap: unknown schedule store %q", cfg.ScheduleStore)
}

package warden

import "github.com/scality/log-warden/pkg/util"

// ConfigSpec defines all configuration items for log-warden
//
//nolint:gochecknoglobals // global config spec is intentional
var ConfigSpec = util.ConfigSpec{
	// External log source (conversational platform API)
	"source.url": util.ConfigVarSpec{
		Help:         "Base URL of the conversational platform API",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_SOURCE_URL",
	},
	"source.api-key": util.ConfigVarSpec{
		Help:         "API key for the conversational platform",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_SOURCE_API_KEY",
	},
	"source.version": util.ConfigVarSpec{
		Help:         "Platform API version date (YYYY-MM-DD)",
		DefaultValue: "2023-06-15",
		EnvVar:       "LOG_WARDEN_SOURCE_VERSION",
	},
	"source.page-limit": util.ConfigVarSpec{
		Help:         "Number of log records requested per page",
		DefaultValue: 100,
		EnvVar:       "LOG_WARDEN_SOURCE_PAGE_LIMIT",
	},
	"source.timeout-seconds": util.ConfigVarSpec{
		Help:         "HTTP timeout for platform API calls in seconds",
		DefaultValue: 30,
		EnvVar:       "LOG_WARDEN_SOURCE_TIMEOUT_SECONDS",
	},

	// ClickHouse connection
	"clickhouse.url": util.ConfigVarSpec{
		Help:         "ClickHouse connection URL",
		DefaultValue: "localhost:9000",
		EnvVar:       "LOG_WARDEN_CLICKHOUSE_URL",
	},
	"clickhouse.database": util.ConfigVarSpec{
		Help:         "ClickHouse database holding log collections",
		DefaultValue: "assistant_logs",
		EnvVar:       "LOG_WARDEN_CLICKHOUSE_DATABASE",
	},
	"clickhouse.username": util.ConfigVarSpec{
		Help:         "ClickHouse username",
		DefaultValue: "default",
		EnvVar:       "LOG_WARDEN_CLICKHOUSE_USERNAME",
	},
	"clickhouse.password": util.ConfigVarSpec{
		Help:         "ClickHouse password",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_CLICKHOUSE_PASSWORD",
	},
	"clickhouse.timeout-seconds": util.ConfigVarSpec{
		Help:         "ClickHouse query timeout in seconds",
		DefaultValue: 30,
		EnvVar:       "LOG_WARDEN_CLICKHOUSE_TIMEOUT_SECONDS",
	},

	// Persistence
	"store.batch-size": util.ConfigVarSpec{
		Help:         "Number of records submitted per bulk upsert",
		DefaultValue: 500,
		EnvVar:       "LOG_WARDEN_STORE_BATCH_SIZE",
	},

	// Retry/backoff for store operations
	"retry.max-retries": util.ConfigVarSpec{
		Help:         "Maximum retry attempts after the initial one",
		DefaultValue: 3,
		EnvVar:       "LOG_WARDEN_RETRY_MAX_RETRIES",
	},
	"retry.initial-backoff-seconds": util.ConfigVarSpec{
		Help:         "Initial retry backoff in seconds (doubles per attempt)",
		DefaultValue: 1,
		EnvVar:       "LOG_WARDEN_RETRY_INITIAL_BACKOFF_SECONDS",
	},
	"retry.max-backoff-seconds": util.ConfigVarSpec{
		Help:         "Maximum retry backoff in seconds",
		DefaultValue: 30,
		EnvVar:       "LOG_WARDEN_RETRY_MAX_BACKOFF_SECONDS",
	},
	"retry.backoff-jitter-factor": util.ConfigVarSpec{
		Help:         "Jitter factor applied to retry backoff (0.0 to 1.0)",
		DefaultValue: 0.2,
		EnvVar:       "LOG_WARDEN_RETRY_BACKOFF_JITTER_FACTOR",
	},

	// Collection pipeline
	"collector.interval-minutes": util.ConfigVarSpec{
		Help:         "Interval between collection runs in minutes",
		DefaultValue: 50,
		EnvVar:       "LOG_WARDEN_COLLECTOR_INTERVAL_MINUTES",
	},
	"collector.excluded-assistants": util.ConfigVarSpec{
		Help:         "Comma-separated assistant names skipped by both pipelines",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_COLLECTOR_EXCLUDED_ASSISTANTS",
	},

	// Audit pipeline
	"audit.interval-hours": util.ConfigVarSpec{
		Help:         "Interval between audit runs in hours",
		DefaultValue: 24,
		EnvVar:       "LOG_WARDEN_AUDIT_INTERVAL_HOURS",
	},
	"audit.report-dir": util.ConfigVarSpec{
		Help:         "Directory for report and collection artifacts",
		DefaultValue: "reports",
		EnvVar:       "LOG_WARDEN_AUDIT_REPORT_DIR",
	},

	// Sanitization
	"sanitize.sensitive-fields": util.ConfigVarSpec{
		Help:         "Comma-separated field names masked in sanitized reports",
		DefaultValue: "text,chapa,emplid,cpf,email",
		EnvVar:       "LOG_WARDEN_SANITIZE_SENSITIVE_FIELDS",
	},
	"sanitize.mask-token": util.ConfigVarSpec{
		Help:         "Token substituted for sensitive string values",
		DefaultValue: DefaultMaskToken,
		EnvVar:       "LOG_WARDEN_SANITIZE_MASK_TOKEN",
	},

	// Failure notification (email relay)
	"notify.email-url": util.ConfigVarSpec{
		Help:         "Email relay endpoint for failure notifications (empty disables)",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_NOTIFY_EMAIL_URL",
	},
	"notify.email-token": util.ConfigVarSpec{
		Help:         "Authentication token for the email relay",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_NOTIFY_EMAIL_TOKEN",
	},
	"notify.sender": util.ConfigVarSpec{
		Help:         "Sender address on failure notifications",
		DefaultValue: "log-warden@localhost",
		EnvVar:       "LOG_WARDEN_NOTIFY_SENDER",
	},
	"notify.stakeholders": util.ConfigVarSpec{
		Help:         "Comma-separated recipient addresses for failure notifications",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_NOTIFY_STAKEHOLDERS",
	},

	// Artifact mirroring to S3 (optional)
	"artifact.s3-bucket": util.ConfigVarSpec{
		Help:         "S3 bucket artifacts are mirrored to (empty disables)",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_ARTIFACT_S3_BUCKET",
	},
	"artifact.s3-prefix": util.ConfigVarSpec{
		Help:         "Key prefix for mirrored artifacts",
		DefaultValue: "reports/",
		EnvVar:       "LOG_WARDEN_ARTIFACT_S3_PREFIX",
	},
	"s3.endpoint": util.ConfigVarSpec{
		Help:         "S3 endpoint URL",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_S3_ENDPOINT",
	},
	"s3.access-key-id": util.ConfigVarSpec{
		Help:         "S3 access key ID",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_S3_ACCESS_KEY_ID",
	},
	"s3.secret-access-key": util.ConfigVarSpec{
		Help:         "S3 secret access key",
		DefaultValue: "",
		EnvVar:       "LOG_WARDEN_S3_SECRET_ACCESS_KEY",
	},

	// Metrics server
	"metrics-server.enabled": util.ConfigVarSpec{
		Help:         "Enable the Prometheus metrics server",
		DefaultValue: false,
		EnvVar:       "LOG_WARDEN_METRICS_SERVER_ENABLED",
	},
	"metrics-server.listen-address": util.ConfigVarSpec{
		Help:         "Listen address of the metrics server",
		DefaultValue: "0.0.0.0",
		EnvVar:       "LOG_WARDEN_METRICS_SERVER_LISTEN_ADDRESS",
	},
	"metrics-server.listen-port": util.ConfigVarSpec{
		Help:         "Listen port of the metrics server",
		DefaultValue: 8611,
		EnvVar:       "LOG_WARDEN_METRICS_SERVER_LISTEN_PORT",
	},

	// General
	"log-level": util.ConfigVarSpec{
		Help:         "Log level (error|warn|info|debug)",
		DefaultValue: "info",
		EnvVar:       "LOG_WARDEN_LOG_LEVEL",
	},
	"shutdown-timeout-seconds": util.ConfigVarSpec{
		Help:         "Time to wait for a graceful shutdown in seconds",
		DefaultValue: 30,
		EnvVar:       "LOG_WARDEN_SHUTDOWN_TIMEOUT_SECONDS",
	},
}

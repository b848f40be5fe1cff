package clickhouse

// DatabaseName is the default ClickHouse database used for assistant log storage
const DatabaseName = "assistant_logs"

// TableAuditReports is the table storing sync reports produced by audit runs
const TableAuditReports = "audit_reports"

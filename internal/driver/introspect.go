package driver

// Introspection queries used by connection testing to extract metadata. Not
// every engine exposes every probe; an empty string means "not available"
// and the caller degrades gracefully.

// VersionQuery returns the engine-version probe for a kind.
func VersionQuery(kind Kind) string {
	switch kind {
	case KindPostgres, KindClickHouse:
		return "SELECT version()"
	case KindMySQL:
		return "SELECT VERSION()"
	case KindSQLite:
		return "SELECT sqlite_version()"
	case KindSnowflake:
		return "SELECT CURRENT_VERSION()"
	default:
		return ""
	}
}

// SchemaQuery returns the current-schema probe for a kind.
func SchemaQuery(kind Kind) string {
	switch kind {
	case KindPostgres:
		return "SELECT current_schema()"
	case KindMySQL:
		return "SELECT DATABASE()"
	case KindClickHouse:
		return "SELECT currentDatabase()"
	case KindSnowflake:
		return "SELECT CURRENT_SCHEMA()"
	case KindSQLite:
		return "SELECT 'main'"
	default:
		return ""
	}
}

// TableCountQuery returns the table-count probe for a kind, scoped to the
// connected schema/database.
func TableCountQuery(kind Kind) string {
	switch kind {
	case KindPostgres:
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema()"
	case KindMySQL:
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE()"
	case KindClickHouse:
		return "SELECT COUNT(*) FROM system.tables WHERE database = currentDatabase()"
	case KindSnowflake:
		return "SELECT COUNT(*) FROM information_schema.tables"
	case KindSQLite:
		return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'"
	default:
		return ""
	}
}

package loader

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLLoader loads tables from a SQL database into typed tables
type SQLLoader struct {
	DSN    string
	Driver string
	DB     *sql.DB
	Logger *logrus.Logger
}

// NewSQLLoader creates a new SQL loader for the given connection string.
// The driver is picked from the DSN scheme: mysql://, postgres:// or
// sqlite://. An empty DSN falls back to the DATADELTA_DSN environment variable.
func NewSQLLoader(dsn string, logger *logrus.Logger) *SQLLoader {
	if dsn == "" {
		dsn = getEnvOrDefault("DATADELTA_DSN", "")
	}

	return &SQLLoader{
		DSN:    dsn,
		Logger: logger,
	}
}

// Connect establishes the database connection
func (sl *SQLLoader) Connect() error {
	if sl.DSN == "" {
		return fmt.Errorf("connection string must be provided either as an argument or as DATADELTA_DSN environment variable")
	}

	driver, dsn, err := resolveDriver(sl.DSN)
	if err != nil {
		sl.Logger.Errorf("Error resolving database driver: %v", err)
		return err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		sl.Logger.Errorf("Error connecting to %s database: %v", driver, err)
		return err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		sl.Logger.Errorf("Error pinging %s database: %v", driver, err)
		return err
	}

	sl.Driver = driver
	sl.DB = db
	sl.Logger.Infof("Connected to %s database", driver)
	return nil
}

// Disconnect closes the database connection
func (sl *SQLLoader) Disconnect() {
	if sl.DB != nil {
		err := sl.DB.Close()
		if err != nil {
			sl.Logger.Errorf("Error closing database connection: %v", err)
		} else {
			sl.Logger.Debugf("Database connection closed")
		}
	}
}

// LoadTable loads a whole database table
func (sl *SQLLoader) LoadTable(table string) (*models.Table, error) {
	return sl.LoadQuery(table, fmt.Sprintf("SELECT * FROM %s", table))
}

// LoadQuery loads the result set of a query as a typed table
func (sl *SQLLoader) LoadQuery(name, query string, params ...interface{}) (*models.Table, error) {
	if sl.DB == nil {
		if err := sl.Connect(); err != nil {
			return nil, err
		}
	}

	sl.Logger.Debugf("Loading table %s", name)

	rows, err := sl.DB.Query(query, params...)
	if err != nil {
		sl.Logger.Errorf("Error executing query: %v", err)
		return nil, err
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		sl.Logger.Errorf("Error getting columns: %v", err)
		return nil, err
	}

	columns := make([]models.Column, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = models.Column{
			Name: ct.Name(),
			Type: columnTypeFromSQL(ct.DatabaseTypeName()),
		}
	}

	var tableRows []models.Row
	for rows.Next() {
		// Scan into a slice of pointers so any column count works
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			sl.Logger.Errorf("Error scanning row: %v", err)
			return nil, err
		}

		row := make(models.Row, len(columns))
		for i, col := range columns {
			row[col.Name] = convertSQLValue(values[i], col.Type)
		}
		tableRows = append(tableRows, row)
	}

	if err := rows.Err(); err != nil {
		sl.Logger.Errorf("Error iterating rows: %v", err)
		return nil, err
	}

	table, err := models.NewTable(name, columns, tableRows)
	if err != nil {
		return nil, err
	}

	sl.Logger.Infof("Loaded table %s: %d records, %d columns", name, table.NumRows(), table.NumColumns())
	return table, nil
}

// resolveDriver picks the sql driver for a connection string and rewrites
// the string into the form the driver expects
func resolveDriver(dsn string) (string, string, error) {
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("invalid mysql connection string: %w", err)
		}
		password, _ := u.User.Password()
		hostPort := u.Host
		if u.Port() == "" {
			hostPort += ":3306"
		}
		database := strings.TrimPrefix(u.Path, "/")
		mysqlDSN := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", u.User.Username(), password, hostPort, database)
		return "mysql", mysqlDSN, nil
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite"):
		return "sqlite", dsn, nil
	default:
		return "", "", fmt.Errorf("cannot determine database driver from connection string: %s", dsn)
	}
}

// columnTypeFromSQL maps a database type name to a declared column type
func columnTypeFromSQL(typeName string) models.ColumnType {
	switch strings.ToUpper(typeName) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL":
		return models.TypeInteger
	case "FLOAT", "DOUBLE", "REAL", "DECIMAL", "NUMERIC", "FLOAT4", "FLOAT8":
		return models.TypeFloat
	case "BOOL", "BOOLEAN", "BIT":
		return models.TypeBoolean
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ", "TIME":
		return models.TypeTime
	case "CHAR", "VARCHAR", "TINYTEXT", "TEXT", "MEDIUMTEXT", "LONGTEXT", "BPCHAR", "NAME", "UUID", "JSON", "JSONB":
		return models.TypeString
	default:
		return models.TypeString
	}
}

// convertSQLValue turns a scanned driver value into a typed cell value.
// Byte slices are parsed according to the declared column type, which
// covers drivers that hand text back for numeric and date columns.
func convertSQLValue(value interface{}, declared models.ColumnType) models.Value {
	if value == nil {
		return models.NullValue()
	}

	switch v := value.(type) {
	case int64:
		if declared == models.TypeBoolean {
			return models.BooleanValue(v != 0)
		}
		if declared == models.TypeFloat {
			return models.FloatValue(float64(v))
		}
		return models.IntegerValue(v)
	case float64:
		return models.FloatValue(v)
	case bool:
		return models.BooleanValue(v)
	case time.Time:
		return models.TimeValue(v)
	case []byte:
		return parseTextValue(string(v), declared)
	case string:
		return parseTextValue(v, declared)
	default:
		return models.StringValue(fmt.Sprintf("%v", v))
	}
}

// parseTextValue interprets driver text output under a declared column type
func parseTextValue(text string, declared models.ColumnType) models.Value {
	switch declared {
	case models.TypeInteger:
		if parsed, err := strconv.ParseInt(text, 10, 64); err == nil {
			return models.IntegerValue(parsed)
		}
	case models.TypeFloat:
		if parsed, err := strconv.ParseFloat(text, 64); err == nil {
			return models.FloatValue(parsed)
		}
	case models.TypeBoolean:
		if parsed, err := strconv.ParseBool(text); err == nil {
			return models.BooleanValue(parsed)
		}
	case models.TypeTime:
		if parsed, err := dateparse.ParseAny(text); err == nil {
			return models.TimeValue(parsed)
		}
	}
	return models.StringValue(text)
}

// getEnvOrDefault gets an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

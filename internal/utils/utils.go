package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SetupLogging configures the logging system
func SetupLogging(logLevel string) *logrus.Logger {
	// Create a new logger
	logger := logrus.New()

	// Get log level from environment variable or parameter
	levelStr := logLevel
	if levelStr == "" {
		levelStr = os.Getenv("DATADELTA_LOG_LEVEL")
		if levelStr == "" {
			levelStr = "info"
		}
	}

	// Parse log level
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	// Configure logger
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stderr)

	logger.Debugf("Logging configured with level: %s", level)
	return logger
}

// LoadEnvironmentVariables loads environment variables from a .env file
func LoadEnvironmentVariables(envFile string, logger *logrus.Logger) {
	// Check if a sample .env file exists but not the actual .env file
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		sampleEnvFile := envFile + ".sample"
		if _, err := os.Stat(sampleEnvFile); err == nil {
			logger.Infof("No %s file found, but %s exists. Consider copying %s to %s and updating it.",
				envFile, sampleEnvFile, sampleEnvFile, envFile)
		}
	}

	// Load environment variables from .env file if it exists
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.Warningf("Error loading %s file: %v", envFile, err)
		} else {
			logger.Infof("Loaded environment variables from %s", envFile)
		}
	} else {
		logger.Debugf("No %s file found, using existing environment variables", envFile)
	}

	// Log all available DATADELTA_* environment variables (for debugging)
	if logger.Level == logrus.DebugLevel {
		for _, env := range os.Environ() {
			if strings.HasPrefix(env, "DATADELTA_") {
				parts := strings.SplitN(env, "=", 2)
				if len(parts) == 2 {
					// Mask connection strings, they can carry credentials
					if parts[0] == "DATADELTA_DSN" {
						logger.Debugf("%s=********", parts[0])
					} else {
						logger.Debugf("%s=%s", parts[0], parts[1])
					}
				}
			}
		}
	}
}

// GetEnvOrDefault gets an environment variable or returns a default value
func GetEnvOrDefault(varName, defaultValue string) string {
	if value, exists := os.LookupEnv(varName); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer value from environment variable
func GetEnvInt(varName string, defaultValue int) int {
	value := os.Getenv(varName)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// SplitColumns splits a comma-separated column list, dropping blanks
func SplitColumns(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}

	var columns []string
	for _, col := range strings.Split(list, ",") {
		col = strings.TrimSpace(col)
		if col != "" {
			columns = append(columns, col)
		}
	}
	return columns
}

// ValidateComparisonParams validates the inputs of a comparison run
func ValidateComparisonParams(oldSource, newSource, key string, logger *logrus.Logger) bool {
	if oldSource == "" {
		logger.Error("Old table source is required")
		return false
	}

	if newSource == "" {
		logger.Error("New table source is required")
		return false
	}

	if len(SplitColumns(key)) == 0 {
		logger.Error("At least one identity key column is required")
		return false
	}

	return true
}

// LoadComparePolicy reads a compare policy from a YAML file
func LoadComparePolicy(path string, logger *logrus.Logger) (models.ComparePolicy, error) {
	policy := models.DefaultComparePolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Errorf("Error reading policy file %s: %v", path, err)
		return policy, err
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		logger.Errorf("Error parsing policy file %s: %v", path, err)
		return policy, fmt.Errorf("invalid policy file %s: %w", path, err)
	}

	logger.Infof("Loaded compare policy from %s", path)
	return policy, nil
}

// PrintComparisonSummary prints a summary of a comparison run
func PrintComparisonSummary(report *models.Report) {
	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("DATASET COMPARISON SUMMARY")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Old table: %s (%d records)\n", report.Meta.OldName, report.OldSummary.RecordCount)
	fmt.Printf("New table: %s (%d records)\n", report.Meta.NewName, report.NewSummary.RecordCount)
	fmt.Printf("Records added: %d\n", report.Summary.RecordsAdded)
	fmt.Printf("Records removed: %d\n", report.Summary.RecordsRemoved)
	fmt.Printf("Records changed: %d\n", report.Summary.RecordsChanged)
	fmt.Printf("Columns added: %d\n", report.Summary.ColumnsAdded)
	fmt.Printf("Columns removed: %d\n", report.Summary.ColumnsRemoved)
	fmt.Printf("Column type changes: %d\n", report.Summary.ColumnsTypeChanged)

	if report.Meta.AllEqual {
		fmt.Println("\n✅ The tables are identical")
	} else {
		fmt.Println("\n❌ Differences found")
	}

	if len(report.Warnings) > 0 {
		fmt.Printf("\n⚠️  %d data quality warning(s):\n", len(report.Warnings))
		for _, warning := range report.Warnings {
			fmt.Printf("  - %s\n", warning.Message)
		}
	}

	fmt.Println(strings.Repeat("=", 50))
}

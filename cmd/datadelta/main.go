package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gibbsbravo/DataDelta/internal/aligner"
	"github.com/gibbsbravo/DataDelta/internal/assembler"
	"github.com/gibbsbravo/DataDelta/internal/comparator"
	"github.com/gibbsbravo/DataDelta/internal/differ"
	"github.com/gibbsbravo/DataDelta/internal/fixture"
	"github.com/gibbsbravo/DataDelta/internal/loader"
	"github.com/gibbsbravo/DataDelta/internal/renderer"
	"github.com/gibbsbravo/DataDelta/internal/utils"
	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes follow diff(1): 0 identical, 1 differences found, 2 trouble
const (
	exitEqual       = 0
	exitDifferences = 1
	exitError       = 2
)

func main() {
	var (
		oldSource       string
		newSource       string
		oldTableName    string
		newTableName    string
		keyColumns      string
		columnSubset    string
		title           string
		absTolerance    float64
		relTolerance    float64
		nullEqualsEmpty bool
		dateOnly        bool
		workers         int
		format          string
		output          string
		overwrite       bool
		policyFile      string
		failOnWarnings  bool
		envFile         string
		logLevel        string
		noColor         bool
		quiet           bool
	)

	rootCmd := &cobra.Command{
		Use:   "datadelta",
		Short: "Compare two versions of a tabular dataset",
		Long: `DataDelta

A tool that compares an old and a new version of a table and reports
schema changes, added and removed records, and field-level value changes.
Tables can be loaded from CSV files or straight from a database.`,
		Run: func(cmd *cobra.Command, args []string) {
			// Setup logging
			if quiet {
				logLevel = "error"
			}
			logger := utils.SetupLogging(logLevel)

			// Load environment variables
			utils.LoadEnvironmentVariables(envFile, logger)

			// Get comparison parameters from environment if not provided
			if oldSource == "" {
				oldSource = os.Getenv("DATADELTA_OLD")
			}
			if newSource == "" {
				newSource = os.Getenv("DATADELTA_NEW")
			}
			if keyColumns == "" {
				keyColumns = os.Getenv("DATADELTA_KEY")
			}
			if workers == 0 {
				workers = utils.GetEnvInt("DATADELTA_WORKERS", 0)
			}

			// Validate comparison parameters
			if !utils.ValidateComparisonParams(oldSource, newSource, keyColumns, logger) {
				os.Exit(exitError)
			}

			// Resolve the compare policy: file first, then flag overrides
			policy := models.DefaultComparePolicy()
			if policyFile != "" {
				loaded, err := utils.LoadComparePolicy(policyFile, logger)
				if err != nil {
					os.Exit(exitError)
				}
				policy = loaded
			}
			if cmd.Flags().Changed("abs-tolerance") {
				policy.AbsTolerance = absTolerance
			}
			if cmd.Flags().Changed("rel-tolerance") {
				policy.RelTolerance = relTolerance
			}
			if cmd.Flags().Changed("null-equals-empty") {
				policy.NullEqualsEmpty = nullEqualsEmpty
			}
			if cmd.Flags().Changed("date-only") {
				policy.DateOnly = dateOnly
			}

			key := utils.SplitColumns(keyColumns)
			subset := utils.SplitColumns(columnSubset)

			// Load both table versions
			oldTable, err := loadTable(oldSource, oldTableName, logger)
			if err != nil {
				logger.Errorf("Failed to load old table: %v", err)
				os.Exit(exitError)
			}
			newTable, err := loadTable(newSource, newTableName, logger)
			if err != nil {
				logger.Errorf("Failed to load new table: %v", err)
				os.Exit(exitError)
			}

			oldTable.Key = key
			newTable.Key = key

			// Run the comparison
			report, err := runComparison(oldTable, newTable, title, subset, policy, workers, logger)
			if err != nil {
				var confErr *models.ConfigurationError
				if errors.As(err, &confErr) {
					logger.Errorf("Invalid comparison configuration: %v", err)
				} else {
					logger.Errorf("Comparison failed: %v", err)
				}
				os.Exit(exitError)
			}

			// Render the report
			if err := renderReport(report, format, output, overwrite, noColor, logger); err != nil {
				logger.Errorf("Failed to render report: %v", err)
				os.Exit(exitError)
			}

			// Print a console summary when the report went to a file
			if output != "" && !quiet {
				utils.PrintComparisonSummary(report)
			}

			// Return appropriate exit code
			if failOnWarnings && len(report.Warnings) > 0 {
				os.Exit(exitDifferences)
			}
			if !report.Meta.AllEqual {
				os.Exit(exitDifferences)
			}
			os.Exit(exitEqual)
		},
	}

	// Define flags
	rootCmd.Flags().StringVarP(&oldSource, "old", "o", "", "Old table source: CSV path or database connection string")
	rootCmd.Flags().StringVarP(&newSource, "new", "n", "", "New table source: CSV path or database connection string")
	rootCmd.Flags().StringVar(&oldTableName, "old-table", "", "Table name for the old source when loading from a database")
	rootCmd.Flags().StringVar(&newTableName, "new-table", "", "Table name for the new source when loading from a database")
	rootCmd.Flags().StringVarP(&keyColumns, "key", "k", "", "Comma-separated identity key columns")
	rootCmd.Flags().StringVarP(&columnSubset, "columns", "c", "", "Comma-separated subset of columns to compare")
	rootCmd.Flags().StringVarP(&title, "title", "T", "", "Report title")
	rootCmd.Flags().Float64Var(&absTolerance, "abs-tolerance", 0, "Absolute tolerance for numeric comparison")
	rootCmd.Flags().Float64Var(&relTolerance, "rel-tolerance", 0, "Relative tolerance for numeric comparison")
	rootCmd.Flags().BoolVar(&nullEqualsEmpty, "null-equals-empty", false, "Treat null and empty string as equal")
	rootCmd.Flags().BoolVar(&dateOnly, "date-only", false, "Compare time values by calendar date only")
	rootCmd.Flags().IntVarP(&workers, "workers", "j", 0, "Number of comparison workers (0 = all CPUs)")
	rootCmd.Flags().StringVarP(&format, "format", "f", "text", "Report format: text, json or html")
	rootCmd.Flags().StringVarP(&output, "output", "O", "", "Write the report to a file instead of stdout")
	rootCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace the output file if it already exists")
	rootCmd.Flags().StringVar(&policyFile, "policy", "", "Path to a YAML compare policy file")
	rootCmd.Flags().BoolVar(&failOnWarnings, "fail-on-warnings", false, "Exit non-zero when data quality warnings are raised")
	rootCmd.Flags().StringVarP(&envFile, "env-file", "e", ".env", "Path to .env file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log messages and the console summary")

	// Demo subcommand: generate a table pair and compare it
	var (
		demoRecords int
		demoSeed    int64
	)
	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Generate a demo table pair and compare them",
		Run: func(cmd *cobra.Command, args []string) {
			if quiet {
				logLevel = "error"
			}
			logger := utils.SetupLogging(logLevel)

			fixtureGenerator := fixture.NewFixtureGenerator(demoSeed, logger)
			oldTable, newTable, err := fixtureGenerator.GeneratePair(demoRecords)
			if err != nil {
				logger.Errorf("Failed to generate demo tables: %v", err)
				os.Exit(exitError)
			}

			report, err := runComparison(oldTable, newTable, "DataDelta Demo Report", nil, models.DefaultComparePolicy(), workers, logger)
			if err != nil {
				logger.Errorf("Comparison failed: %v", err)
				os.Exit(exitError)
			}

			textRenderer := renderer.NewTextRenderer(!noColor, logger)
			if err := textRenderer.Render(os.Stdout, report); err != nil {
				logger.Errorf("Failed to render report: %v", err)
				os.Exit(exitError)
			}
		},
	}
	demoCmd.Flags().IntVarP(&demoRecords, "records", "r", 10, "Number of records in the demo tables")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 42, "Random seed for the demo tables")
	rootCmd.AddCommand(demoCmd)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(exitError)
	}
}

// loadTable loads one table version from a CSV path or a database source
func loadTable(source, tableName string, logger *logrus.Logger) (*models.Table, error) {
	if isDatabaseSource(source) {
		if tableName == "" {
			return nil, fmt.Errorf("a table name is required when loading from a database")
		}
		sqlLoader := loader.NewSQLLoader(source, logger)
		if err := sqlLoader.Connect(); err != nil {
			return nil, err
		}
		defer sqlLoader.Disconnect()
		return sqlLoader.LoadTable(tableName)
	}

	return loader.NewCSVLoader(logger).Load(source)
}

// isDatabaseSource reports whether a source names a database rather than a CSV file
func isDatabaseSource(source string) bool {
	return strings.HasPrefix(source, "mysql://") ||
		strings.HasPrefix(source, "postgres://") ||
		strings.HasPrefix(source, "postgresql://") ||
		strings.HasPrefix(source, "sqlite://") ||
		strings.HasSuffix(source, ".db") ||
		strings.HasSuffix(source, ".sqlite")
}

// runComparison wires the comparison stages together and runs them
func runComparison(oldTable, newTable *models.Table, title string, subset []string, policy models.ComparePolicy, workers int, logger *logrus.Logger) (*models.Report, error) {
	schemaComparator := comparator.NewSchemaComparator(logger)
	recordAligner := aligner.NewRecordAligner(logger)
	valueDiffer := differ.NewValueDiffer(policy, logger)
	reportAssembler := assembler.NewReportAssembler(schemaComparator, recordAligner, valueDiffer, workers, logger)
	return reportAssembler.Run(oldTable, newTable, title, subset)
}

// renderReport renders the report in the chosen format, to stdout or a file
func renderReport(report *models.Report, format, output string, overwrite, noColor bool, logger *logrus.Logger) error {
	var r renderer.Renderer
	switch format {
	case "text", "":
		// Color only makes sense on a terminal, not inside a file
		r = renderer.NewTextRenderer(!noColor && output == "", logger)
	case "json":
		r = renderer.NewJSONRenderer(true, logger)
	case "html":
		r = renderer.NewHTMLRenderer(logger)
	default:
		return fmt.Errorf("unknown output format: %s (expected text, json or html)", format)
	}

	if output == "" {
		return r.Render(os.Stdout, report)
	}
	return renderer.WriteFile(r, output, report, overwrite, logger)
}

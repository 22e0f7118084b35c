package fixture

import (
	"math"
	"math/rand"
	"time"

	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/jaswdr/faker"
	"github.com/sirupsen/logrus"
)

// FixtureGenerator builds paired demo tables with a known set of differences
type FixtureGenerator struct {
	Faker  faker.Faker
	Rand   *rand.Rand
	Logger *logrus.Logger
}

// NewFixtureGenerator creates a new fixture generator.
// The same seed always produces the same table pair.
func NewFixtureGenerator(seed int64, logger *logrus.Logger) *FixtureGenerator {
	return &FixtureGenerator{
		Faker:  faker.NewWithSeed(rand.NewSource(seed)),
		Rand:   rand.New(rand.NewSource(seed)),
		Logger: logger,
	}
}

// GeneratePair builds an old and new version of a demo customers table.
// The new version carries added, removed and changed records, a new
// column, one null key and one duplicated key, so a comparison of the
// pair exercises every part of a report.
func (fg *FixtureGenerator) GeneratePair(numRecords int) (*models.Table, *models.Table, error) {
	if numRecords < 5 {
		numRecords = 5
	}

	columns := []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeString},
		{Name: "company", Type: models.TypeString},
		{Name: "email", Type: models.TypeString},
		{Name: "amount", Type: models.TypeFloat},
		{Name: "active", Type: models.TypeBoolean},
		{Name: "signup_date", Type: models.TypeTime},
	}

	oldRows := make([]models.Row, numRecords)
	for i := 0; i < numRecords; i++ {
		oldRows[i] = fg.generateRecord(int64(i + 1))
	}

	oldTable, err := models.NewTable("customers_old", columns, oldRows)
	if err != nil {
		return nil, nil, err
	}
	oldTable.Key = []string{"id"}

	newColumns := append(append([]models.Column{}, columns...), models.Column{Name: "status", Type: models.TypeString})

	// Keep all but the last two records, then perturb some of the survivors
	var newRows []models.Row
	for i := 0; i < numRecords-2; i++ {
		row := cloneRow(oldRows[i])
		switch {
		case i%4 == 1:
			amount := row["amount"]
			row["amount"] = models.FloatValue(round2(amount.Float * 1.1))
		case i%4 == 2:
			row["email"] = models.StringValue(fg.Faker.Internet().Email())
		case i%4 == 3:
			row["active"] = models.BooleanValue(!row["active"].Bool)
		}
		row["status"] = fg.generateStatus()
		newRows = append(newRows, row)
	}

	// Two brand new records
	for i := 0; i < 2; i++ {
		row := fg.generateRecord(int64(numRecords + i + 1))
		row["status"] = fg.generateStatus()
		newRows = append(newRows, row)
	}

	// A second record for the first key, and a record with no key at all
	duplicate := fg.generateRecord(1)
	duplicate["status"] = fg.generateStatus()
	newRows = append(newRows, duplicate)

	orphan := fg.generateRecord(0)
	orphan["id"] = models.NullValue()
	orphan["status"] = fg.generateStatus()
	newRows = append(newRows, orphan)

	newTable, err := models.NewTable("customers_new", newColumns, newRows)
	if err != nil {
		return nil, nil, err
	}
	newTable.Key = []string{"id"}

	fg.Logger.Infof("Generated demo tables: %d old records, %d new records", oldTable.NumRows(), newTable.NumRows())
	return oldTable, newTable, nil
}

// generateRecord builds one fake customer record
func (fg *FixtureGenerator) generateRecord(id int64) models.Row {
	// Dates stay within the five years before a fixed point, so the same
	// seed produces the same pair on any day
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	signup := base.AddDate(0, 0, -fg.Rand.Intn(365*5))

	return models.Row{
		"id":          models.IntegerValue(id),
		"name":        models.StringValue(fg.Faker.Person().Name()),
		"company":     models.StringValue(fg.Faker.Company().Name()),
		"email":       models.StringValue(fg.Faker.Internet().Email()),
		"amount":      models.FloatValue(round2(fg.Rand.Float64() * 1000)),
		"active":      models.BooleanValue(fg.Rand.Intn(2) == 1),
		"signup_date": models.TimeValue(signup),
	}
}

// generateStatus picks a status value for the column only the new version has
func (fg *FixtureGenerator) generateStatus() models.Value {
	statuses := []string{"active", "churned", "trial"}
	return models.StringValue(statuses[fg.Rand.Intn(len(statuses))])
}

// cloneRow copies a row so mutations never touch the original table
func cloneRow(row models.Row) models.Row {
	clone := make(models.Row, len(row))
	for col, value := range row {
		clone[col] = value
	}
	return clone
}

// round2 rounds to two decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

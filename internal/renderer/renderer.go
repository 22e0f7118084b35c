package renderer

import (
	"fmt"
	"io"
	"os"

	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
)

// Renderer turns an assembled report into one output format
type Renderer interface {
	Render(w io.Writer, report *models.Report) error
}

// WriteFile renders a report to a file. An existing file is only
// replaced when overwrite is set.
func WriteFile(r Renderer, path string, report *models.Report, overwrite bool, logger *logrus.Logger) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("output file %s already exists, pass overwrite to replace it", path)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		logger.Errorf("Error creating output file %s: %v", path, err)
		return err
	}
	defer file.Close()

	if err := r.Render(file, report); err != nil {
		logger.Errorf("Error rendering report to %s: %v", path, err)
		return err
	}

	logger.Infof("Report written to %s", path)
	return nil
}

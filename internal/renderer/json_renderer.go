package renderer

import (
	"encoding/json"
	"io"

	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
)

// JSONRenderer renders a report as JSON for machine consumption
type JSONRenderer struct {
	Indent bool
	Logger *logrus.Logger
}

// NewJSONRenderer creates a new JSON renderer
func NewJSONRenderer(indent bool, logger *logrus.Logger) *JSONRenderer {
	return &JSONRenderer{
		Indent: indent,
		Logger: logger,
	}
}

// Render writes the report as a single JSON document
func (jr *JSONRenderer) Render(w io.Writer, report *models.Report) error {
	encoder := json.NewEncoder(w)
	if jr.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(report)
}

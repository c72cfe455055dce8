package pipeline

import (
	"fmt"

	"github.com/aluiziolira/booksdata/config"
	"github.com/aluiziolira/booksdata/models"
)

// ValidateFormat rejects unknown formats and file formats without a path.
func ValidateFormat(format, path string) error {
	switch format {
	case config.FormatDataFrame:
		return nil
	case config.FormatCSV, config.FormatExcel, config.FormatJSON:
		if path == "" {
			return fmt.Errorf("format %s requires an output path", format)
		}
		return nil
	default:
		return ErrUnsupportedFormat{Format: format}
	}
}

// NewWriter creates the writer for a file format.
func NewWriter(format, path string) (OutputWriter, error) {
	switch format {
	case config.FormatCSV:
		return NewCSVWriter(path)
	case config.FormatExcel:
		return NewExcelWriter(path)
	case config.FormatJSON:
		return NewJSONWriter(path)
	default:
		return nil, ErrUnsupportedFormat{Format: format}
	}
}

// Export writes t to path in format. The df format keeps the table in memory
// and writes nothing.
func Export(t *models.Table, format, path string) error {
	if err := ValidateFormat(format, path); err != nil {
		return err
	}
	if format == config.FormatDataFrame {
		return nil
	}

	writer, err := NewWriter(format, path)
	if err != nil {
		return err
	}
	if err := writer.Write(t); err != nil {
		writer.Close()
		return fmt.Errorf("write %s: %w", format, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close %s: %w", format, err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("validate %s: %w", format, err)
	}
	return nil
}

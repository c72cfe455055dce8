package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/aluiziolira/booksdata/models"
)

// OutputWriter defines the interface for table output.
type OutputWriter interface {
	Write(t *models.Table) error
	Close() error
	Validate() error
}

// header guards that every table written to one output shares its columns.
type header struct {
	columns []string
}

func (h *header) check(columns []string) (first bool, err error) {
	if h.columns == nil {
		h.columns = columns
		return true, nil
	}
	if !slices.Equal(h.columns, columns) {
		return false, fmt.Errorf("columns %v do not match header %v", columns, h.columns)
	}
	return false, nil
}

// CSVWriter writes tables as delimited text.
type CSVWriter struct {
	filename string
	file     *os.File
	writer   *csv.Writer
	header   header
	mu       sync.Mutex
}

// NewCSVWriter creates the output file. The header row is written with the
// first table.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	return &CSVWriter{
		filename: filename,
		file:     f,
		writer:   csv.NewWriter(f),
	}, nil
}

// Write appends the table's rows to the CSV output.
func (cw *CSVWriter) Write(t *models.Table) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	columns := t.Columns()
	first, err := cw.header.check(columns)
	if err != nil {
		return err
	}
	if first {
		if err := cw.writer.Write(columns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	record := make([]string, len(columns))
	for r := 0; r < t.Len(); r++ {
		for i, cell := range t.Row(r) {
			record[i] = cell.String()
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	return validateFile(cw.filename, "csv")
}

// JSONWriter writes newline-delimited JSON records, one object per row with
// keys in column order.
type JSONWriter struct {
	filename string
	file     *os.File
	writer   *bufio.Writer
	mu       sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	return &JSONWriter{
		filename: filename,
		file:     f,
		writer:   bufio.NewWriter(f),
	}, nil
}

// Write appends the table's rows in JSONL format.
func (jw *JSONWriter) Write(t *models.Table) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	columns := t.Columns()
	for r := 0; r < t.Len(); r++ {
		line, err := encodeRow(columns, t.Row(r))
		if err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		if _, err := jw.writer.Write(line); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

func encodeRow(columns []string, row []models.Cell) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(row[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	return validateFile(jw.filename, "json")
}

// ExcelWriter writes tables to a single-sheet workbook saved on Close.
type ExcelWriter struct {
	filename string
	book     *excelize.File
	sheet    string
	header   header
	nextRow  int
	mu       sync.Mutex
}

// NewExcelWriter prepares an in-memory workbook for filename.
func NewExcelWriter(filename string) (*ExcelWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	book := excelize.NewFile()
	return &ExcelWriter{
		filename: filename,
		book:     book,
		sheet:    book.GetSheetName(book.GetActiveSheetIndex()),
		nextRow:  1,
	}, nil
}

// Write appends the table's rows to the sheet. Missing cells stay blank.
func (ew *ExcelWriter) Write(t *models.Table) error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	columns := t.Columns()
	first, err := ew.header.check(columns)
	if err != nil {
		return err
	}
	if first {
		for i, col := range columns {
			if err := ew.setCell(i+1, ew.nextRow, col); err != nil {
				return err
			}
		}
		ew.nextRow++
	}

	for r := 0; r < t.Len(); r++ {
		for i, cell := range t.Row(r) {
			var value any
			switch cell.Kind {
			case models.CellString:
				value = cell.Str
			case models.CellNumber:
				value = cell.Num
			default:
				continue
			}
			if err := ew.setCell(i+1, ew.nextRow, value); err != nil {
				return err
			}
		}
		ew.nextRow++
	}
	return nil
}

func (ew *ExcelWriter) setCell(col, row int, value any) error {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("excel cell name: %w", err)
	}
	if err := ew.book.SetCellValue(ew.sheet, name, value); err != nil {
		return fmt.Errorf("set excel cell %s: %w", name, err)
	}
	return nil
}

// Close saves the workbook to disk.
func (ew *ExcelWriter) Close() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	if err := ew.book.SaveAs(ew.filename); err != nil {
		ew.book.Close()
		return fmt.Errorf("save excel file: %w", err)
	}
	return ew.book.Close()
}

// Validate ensures the workbook was written.
func (ew *ExcelWriter) Validate() error {
	return validateFile(ew.filename, "excel")
}

func validateFile(filename, kind string) error {
	info, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

package sources

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"netlab.no/usersync/usersync"
)

// CsvSource reads the whole batch from CSV data with a header row. The
// data comes from a file path or is handed in directly; rows shorter or
// longer than the header are padded or truncated rather than rejected.
type CsvSource struct {
	path  string
	data  []byte
	comma rune
}

func NewCsvFileSource(path string, separator string) *CsvSource {
	return &CsvSource{path: path, comma: separatorRune(separator)}
}

func NewCsvDataSource(data []byte, separator string) *CsvSource {
	return &CsvSource{data: data, comma: separatorRune(separator)}
}

func separatorRune(separator string) rune {
	for _, r := range strings.TrimSpace(separator) {
		return r
	}
	return ','
}

func (s *CsvSource) Rows() (rows []usersync.Row, err error) {
	var data = s.data
	if s.path != "" {
		if data, err = os.ReadFile(s.path); err != nil {
			return nil, fmt.Errorf("reading the file defined in the data source failed. DataSource: %s. Error: %s", s.path, err)
		}
	}
	if data, err = decodeToUTF8(data); err != nil {
		return nil, err
	}

	var reader = csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = s.comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("the data contained no header row. DataSource: %s", s.path)
		}
		return nil, fmt.Errorf("reading the header row failed: %s", err)
	}
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
	}

	rows = []usersync.Row{}
	for {
		record, er1 := reader.Read()
		if errors.Is(er1, io.EOF) {
			break
		}
		if er1 != nil {
			return nil, fmt.Errorf("reading an import row failed: %s", er1)
		}
		if len(record) < len(header) {
			var padded = make([]string, len(header))
			copy(padded, record)
			record = padded
		}
		var row = make(usersync.MapRow, len(header))
		for i, name := range header {
			row[name] = record[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

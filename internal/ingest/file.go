package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/coeus-crm/leadgen-cli/internal/model"
)

// ReadFile loads raw records from a CSV or XLSX export. The first row is the
// header; every cell value stays a string and the normalizer handles typing.
func ReadFile(path string) ([]model.RawRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: open csv")
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads header-keyed records from r. Short rows are padded with empty
// strings so every record carries the full header.
func ReadCSV(r io.Reader) ([]model.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []model.RawRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read csv row")
		}
		records = append(records, rowToRecord(header, row))
	}
	return records, nil
}

// ReadXLSX reads the first sheet of an XLSX workbook, first row as header.
func ReadXLSX(path string) ([]model.RawRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = strings.TrimSpace(cell.String())
	}

	var records []model.RawRecord
	for _, row := range sheet.Rows[1:] {
		cells := make([]string, len(row.Cells))
		empty := true
		for i, cell := range row.Cells {
			cells[i] = cell.String()
			if strings.TrimSpace(cells[i]) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		records = append(records, rowToRecord(header, cells))
	}
	return records, nil
}

func rowToRecord(header, row []string) model.RawRecord {
	rec := make(model.RawRecord, len(header))
	for i, key := range header {
		if key == "" {
			continue
		}
		if i < len(row) {
			rec[key] = row[i]
		} else {
			rec[key] = ""
		}
	}
	return rec
}

package normalize

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"kpiload/models"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// FormatFromPath picks the customer source format by extension, CSV being the default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return XLSX
	default:
		return CSV
	}
}

type CustomerStats struct {
	Read    int `json:"read"`
	Dropped int `json:"dropped"` // repeated mobile number or customer id
}

// rowSource yields raw rows, header first.
type rowSource interface {
	Next() ([]string, error)
}

// LoadCustomers reads every customer row, normalizes it and drops repeated mobile numbers.
// A SchemaError aborts the load and no customers are returned.
func LoadCustomers(r io.Reader, format Format, logger *log.Logger) ([]models.Customer, CustomerStats, error) {
	var src rowSource
	switch format {
	case CSV:
		src = newCSVRows(r)
	case XLSX:
		rows, err := newXLSXRows(r)
		if err != nil {
			return nil, CustomerStats{}, err
		}
		defer rows.Close()
		src = rows
	default:
		return nil, CustomerStats{}, errors.Errorf("unsupported customer format %q", format)
	}

	header, err := src.Next()
	if err == io.EOF {
		return nil, CustomerStats{}, &SchemaError{Source: "customers", Field: string(CustomerID), Tried: customerFields[0].synonyms}
	}
	if err != nil {
		return nil, CustomerStats{}, errors.Wrap(err, "read customer header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	fm, err := Resolve(header)
	if err != nil {
		return nil, CustomerStats{}, err
	}

	var (
		stats     CustomerStats
		customers []models.Customer
		mobiles   = make(map[string]struct{})
		ids       = make(map[string]struct{})
	)
	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, CustomerStats{}, errors.Wrapf(err, "read customer row %d", stats.Read+1)
		}
		stats.Read++
		c := customerFromRow(row, fm)
		// First row wins on either unique key, as it does in the customers table.
		_, dupMobile := mobiles[c.MobileNumber]
		_, dupID := ids[c.CustomerID]
		if dupMobile || dupID {
			stats.Dropped++
			continue
		}
		mobiles[c.MobileNumber] = struct{}{}
		ids[c.CustomerID] = struct{}{}
		customers = append(customers, c)
	}
	if stats.Dropped > 0 {
		logger.Infof("deduped customers by mobile_number and customer_id: %d -> %d", stats.Read, len(customers))
	}
	return customers, stats, nil
}

func customerFromRow(row []string, fm FieldMap) models.Customer {
	cell := func(f Field) string {
		i := fm.Index(f)
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	c := models.Customer{
		CustomerID:   cell(CustomerID),
		CustomerName: cell(CustomerName),
		MobileNumber: StripSpaces(cell(MobileNumber)),
	}
	if region := cell(Region); region != "" {
		c.Region = &region
	}
	return c
}

// StripSpaces removes every whitespace rune, not only the surrounding ones.
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

type csvRows struct {
	r *csv.Reader
}

func newCSVRows(r io.Reader) *csvRows {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &csvRows{r: cr}
}

func (c *csvRows) Next() ([]string, error) {
	for {
		rec, err := c.r.Read()
		if err != nil {
			return nil, err
		}
		if isBlank(rec) {
			continue
		}
		return rec, nil
	}
}

type xlsxRows struct {
	file *excelize.File
	rows *excelize.Rows
}

func newXLSXRows(r io.Reader) (*xlsxRows, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open customer workbook")
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, errors.New("customer workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "read sheet %s", sheets[0])
	}
	return &xlsxRows{file: f, rows: rows}, nil
}

func (x *xlsxRows) Next() ([]string, error) {
	for x.rows.Next() {
		cols, err := x.rows.Columns()
		if err != nil {
			return nil, err
		}
		if isBlank(cols) {
			continue
		}
		return cols, nil
	}
	if err := x.rows.Error(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (x *xlsxRows) Close() {
	_ = x.rows.Close()
	_ = x.file.Close()
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

package foods

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ObjectGetter reads a whole object from blob storage.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// LoadFile reads a dataset from a CSV file on disk.
func LoadFile(path string) (*Dataset, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &DataLoadError{Source: path, Err: fmt.Errorf("%w: path is empty", ErrSourceUnavailable)}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &DataLoadError{Source: path, Err: fmt.Errorf("%w: %v", ErrSourceUnavailable, err)}
	}
	defer f.Close()

	return Load(f, path)
}

// LoadObject reads a dataset stored under key in object storage.
func LoadObject(ctx context.Context, store ObjectGetter, key string) (*Dataset, error) {
	source := "s3://" + key
	if store == nil {
		return nil, &DataLoadError{Source: source, Err: fmt.Errorf("%w: object storage is not configured", ErrSourceUnavailable)}
	}

	data, err := store.GetObject(ctx, key)
	if err != nil {
		return nil, &DataLoadError{Source: source, Err: fmt.Errorf("%w: %v", ErrSourceUnavailable, err)}
	}

	return Load(bytes.NewReader(data), source)
}

// Load parses CSV input into a Dataset. source is only used in errors.
func Load(r io.Reader, source string) (*Dataset, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DataLoadError{Source: source, Err: fmt.Errorf("%w: no header row", ErrMalformed)}
		}
		return nil, &DataLoadError{Source: source, Line: 1, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			return nil, &DataLoadError{Source: source, Column: col, Err: ErrMissingColumn}
		}
	}

	items := make([]FoodItem, 0, 1024)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &DataLoadError{Source: source, Line: line, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
		line, _ := cr.FieldPos(0)
		if len(record) > len(header) {
			return nil, &DataLoadError{
				Source: source,
				Line:   line,
				Err:    fmt.Errorf("%w: %d fields, header has %d", ErrMalformed, len(record), len(header)),
			}
		}

		item, col, err := parseRow(header, index, record)
		if err != nil {
			return nil, &DataLoadError{Source: source, Line: line, Column: col, Err: err}
		}
		items = append(items, item)
	}

	return &Dataset{source: source, header: header, items: items}, nil
}

func parseRow(header []string, index map[string]int, record []string) (FoodItem, string, error) {
	cell := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	item := FoodItem{
		Name:    cell(ColumnName),
		Code:    cell(ColumnCode),
		Columns: make([]Column, len(header)),
	}
	for i, name := range header {
		value := ""
		if i < len(record) {
			value = strings.TrimSpace(record[i])
		}
		item.Columns[i] = Column{Name: name, Value: value}
	}

	if c := cell(ColumnCategory); c != "" {
		item.Category = &c
	}

	nutrients := []struct {
		col string
		dst **float64
	}{
		{ColumnEnergy, &item.EnergyKcal},
		{ColumnProtein, &item.ProteinG},
		{ColumnFat, &item.FatG},
		{ColumnCarbohydrate, &item.CarbohydrateG},
		{ColumnSugar, &item.SugarG},
		{ColumnSodium, &item.SodiumMg},
		{ColumnFiber, &item.FiberG},
	}
	for _, n := range nutrients {
		v, err := parseAmount(cell(n.col))
		if err != nil {
			return FoodItem{}, n.col, err
		}
		*n.dst = v
	}

	return item, "", nil
}

// skipBOM drops a leading UTF-8 byte order mark, common in spreadsheet exports.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}
	return br
}

// parseAmount returns nil for missing values ("", "-", "NaN").
func parseAmount(s string) (*float64, error) {
	switch strings.ToLower(s) {
	case "", "-", "nan", "null":
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", ErrMalformed, s)
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	if v < 0 || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %q is not a non-negative amount", ErrMalformed, s)
	}
	return &v, nil
}

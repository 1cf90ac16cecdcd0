package model

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DatasetReader implementors instantiate a dataset from a byte stream.
type DatasetReader interface {
	ReadDataset(data []byte) (*Dataset, error)
}

// CSVReader reads a headered CSV file of numeric columns. The column named
// Response becomes y; every other column becomes a predictor, in file order.
type CSVReader struct {
	Response string
}

// ReadDataset parses the CSV byte stream into a Dataset.
func (r CSVReader) ReadDataset(data []byte) (*Dataset, error) {
	if len(r.Response) < 1 {
		return nil, errors.Errorf("No response column specified")
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "Could not parse CSV data")
	}
	if len(records) < 3 {
		return nil, errors.Errorf("CSV has %d rows - need a header and at least 2 data rows", len(records))
	}

	header := records[0]
	respIdx := -1
	for i, name := range header {
		if name == r.Response {
			respIdx = i
			break
		}
	}
	if respIdx < 0 {
		return nil, errors.Errorf("Response column %q not found in header %v", r.Response, header)
	}

	n := len(records) - 1
	k := len(header) - 1
	if k < 1 {
		return nil, errors.Errorf("CSV has no predictor columns")
	}

	y := make([]float64, n)
	x := mat.NewDense(n, k, nil)

	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, errors.Errorf("CSV row %d has %d fields, header has %d", i+2, len(rec), len(header))
		}

		col := 0
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "CSV row %d column %q is not numeric", i+2, header[j])
			}
			if j == respIdx {
				y[i] = v
			} else {
				x.Set(i, col, v)
				col++
			}
		}
	}

	return NewDataset(y, x)
}

// NewDatasetFromFile reads and optionally standardizes a dataset, naming it
// from the file stem.
func NewDatasetFromFile(r DatasetReader, filename string, standardize bool) (*Dataset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ dataset from %s", filename)
	}

	d, err := r.ReadDataset(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE dataset from %s", filename)
	}

	ext := filepath.Ext(filename)
	d.Name = filepath.Base(filename[0 : len(filename)-len(ext)])

	if standardize {
		if err := d.Standardize(); err != nil {
			return nil, errors.Wrapf(err, "Could not standardize dataset %s", d.Name)
		}
	}

	return d, nil
}

package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testCSV = `lpsa,lcavol,lweight
0.5,1.2,3.4
-0.1,0.8,3.1
1.7,2.1,3.9
0.9,1.5,3.6
`

func TestCSVReader(t *testing.T) {
	assert := assert.New(t)

	r := CSVReader{Response: "lpsa"}
	d, err := r.ReadDataset([]byte(testCSV))
	assert.NoError(err)
	assert.Equal(4, d.N)
	assert.Equal(2, d.K)
	assert.InDelta(0.5, d.Y[0], 1e-12)
	assert.InDelta(-0.1, d.Y[1], 1e-12)
	assert.InDelta(1.2, d.X.At(0, 0), 1e-12)
	assert.InDelta(3.9, d.X.At(2, 1), 1e-12)
}

func TestCSVReaderErrors(t *testing.T) {
	assert := assert.New(t)

	// No response configured
	_, err := CSVReader{}.ReadDataset([]byte(testCSV))
	assert.Error(err)

	// Missing response column
	_, err = CSVReader{Response: "nope"}.ReadDataset([]byte(testCSV))
	assert.Error(err)

	// Non-numeric cell
	bad := "y,x\n1.0,oops\n2.0,3.0\n"
	_, err = CSVReader{Response: "y"}.ReadDataset([]byte(bad))
	assert.Error(err)

	// Too few rows
	short := "y,x\n1.0,2.0\n"
	_, err = CSVReader{Response: "y"}.ReadDataset([]byte(short))
	assert.Error(err)
}

func TestNewDatasetFromFile(t *testing.T) {
	assert := assert.New(t)

	fn := filepath.Join(t.TempDir(), "prostate.csv")
	assert.NoError(os.WriteFile(fn, []byte(testCSV), 0o644))

	d, err := NewDatasetFromFile(CSVReader{Response: "lpsa"}, fn, true)
	assert.NoError(err)
	assert.Equal("prostate", d.Name)

	// Standardized: column means ~0
	sum := 0.0
	for i := 0; i < d.N; i++ {
		sum += d.X.At(i, 0)
	}
	assert.InDelta(0.0, sum, 1e-9)

	_, err = NewDatasetFromFile(CSVReader{Response: "lpsa"}, fn+".missing", false)
	assert.Error(err)
}

package sample

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/eduardo-ufmg/2DoFSBP/internal/session"
)

// csvHeader is the column layout the downstream analysis tooling expects.
var csvHeader = []string{"Time(s)", "Input", "Angle"}

// WriteCSV writes the buffer as CSV with one row per sample and timestamps
// derived from the sample period.
func WriteCSV(w io.Writer, buf *session.SampleBuffer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("sample: write csv header: %w", err)
	}

	for i := 0; i < buf.Len(); i++ {
		s := buf.At(i)
		row := []string{
			strconv.FormatFloat(s.Time.Seconds(), 'g', -1, 64),
			strconv.FormatFloat(float64(s.Input), 'g', -1, 32),
			strconv.FormatFloat(float64(s.Angle), 'g', -1, 32),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("sample: write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("sample: flush csv: %w", err)
	}
	return nil
}

// WriteCSVFile writes the buffer to a file, creating or truncating it.
func WriteCSVFile(path string, buf *session.SampleBuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sample: create %s: %w", path, err)
	}

	if err := WriteCSV(f, buf); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("sample: close %s: %w", path, err)
	}
	return nil
}

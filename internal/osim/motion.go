package osim

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Motion is a solved joint-angle trajectory written as a .mot file.
type Motion struct {
	Name      string
	InDegrees bool
	Columns   []string // coordinate names, excluding the time column
	Rows      []MotionRow
}

// MotionRow is one solved frame.
type MotionRow struct {
	Time   float64
	Values []float64
}

// Write encodes the motion in .mot text form.
func (m *Motion) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	degrees := "no"
	if m.InDegrees {
		degrees = "yes"
	}
	fmt.Fprintf(bw, "%s\n", m.Name)
	fmt.Fprintf(bw, "version=1\n")
	fmt.Fprintf(bw, "nRows=%d\n", len(m.Rows))
	fmt.Fprintf(bw, "nColumns=%d\n", len(m.Columns)+1)
	fmt.Fprintf(bw, "inDegrees=%s\n", degrees)
	fmt.Fprintf(bw, "endheader\n")

	fmt.Fprintf(bw, "time")
	for _, c := range m.Columns {
		fmt.Fprintf(bw, "\t%s", c)
	}
	fmt.Fprintf(bw, "\n")

	for i, row := range m.Rows {
		if len(row.Values) != len(m.Columns) {
			return fmt.Errorf("motion row %d has %d values, want %d", i, len(row.Values), len(m.Columns))
		}
		fmt.Fprintf(bw, "%.8f", row.Time)
		for _, v := range row.Values {
			fmt.Fprintf(bw, "\t%.8f", v)
		}
		fmt.Fprintf(bw, "\n")
	}
	return bw.Flush()
}

// Save writes the motion file to disk, overwriting any existing file.
func (m *Motion) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create motion file %s: %w", path, err)
	}
	if err := m.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write motion file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close motion file %s: %w", path, err)
	}
	return nil
}

package osim

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Frame is one sampled instant of a marker trajectory. Positions are in
// meters; markers occluded in this frame are absent from the map.
type Frame struct {
	Index     int
	Time      float64
	Positions map[string]mgl64.Vec3
}

// Trajectory is an ordered sequence of recorded marker frames.
type Trajectory struct {
	DataRate    float64
	MarkerNames []string
	Frames      []Frame
}

// LoadTRC reads a marker trajectory file.
func LoadTRC(path string) (*Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trajectory file %s: %w", path, err)
	}
	defer f.Close()
	t, err := ParseTRC(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trajectory file %s: %w", path, err)
	}
	return t, nil
}

// ParseTRC parses a tab-separated .trc marker trajectory. Positions are
// converted to meters when the file's units are millimeters.
func ParseTRC(r io.Reader) (*Trajectory, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	// Line 1: file type banner.
	line, err := nextLine(scanner)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "PathFileType") {
		return nil, fmt.Errorf("not a trc file: first line %q", line)
	}

	// Line 2: header keys, line 3: header values.
	if _, err := nextLine(scanner); err != nil {
		return nil, err
	}
	line, err = nextLine(scanner)
	if err != nil {
		return nil, err
	}
	header := strings.Fields(line)
	if len(header) < 5 {
		return nil, fmt.Errorf("trc header too short: %q", line)
	}
	dataRate, err := strconv.ParseFloat(header[0], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DataRate %q: %w", header[0], err)
	}
	numMarkers, err := strconv.Atoi(header[3])
	if err != nil {
		return nil, fmt.Errorf("invalid NumMarkers %q: %w", header[3], err)
	}
	units := header[4]
	scale := 1.0
	switch units {
	case "m":
	case "mm":
		scale = 0.001
	default:
		return nil, fmt.Errorf("unsupported trc units %q: want m or mm", units)
	}

	// Line 4: Frame# Time <marker names>.
	line, err = nextLine(scanner)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "Frame#" {
		return nil, fmt.Errorf("invalid trc column header: %q", line)
	}
	names := fields[2:]
	if len(names) != numMarkers {
		return nil, fmt.Errorf("trc declares %d markers but names %d", numMarkers, len(names))
	}

	// Line 5: X1 Y1 Z1 component labels, skipped.
	if _, err := nextLine(scanner); err != nil {
		return nil, err
	}

	t := &Trajectory{DataRate: dataRate, MarkerNames: names}
	for scanner.Scan() {
		row := strings.TrimSpace(scanner.Text())
		if row == "" {
			continue
		}
		cols := strings.Fields(row)
		if len(cols) != 2+3*numMarkers {
			return nil, fmt.Errorf("trc data row has %d columns, want %d", len(cols), 2+3*numMarkers)
		}
		idx, err := strconv.Atoi(cols[0])
		if err != nil {
			return nil, fmt.Errorf("invalid frame number %q: %w", cols[0], err)
		}
		tm, err := strconv.ParseFloat(cols[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frame time %q: %w", cols[1], err)
		}
		frame := Frame{Index: idx, Time: tm, Positions: make(map[string]mgl64.Vec3, numMarkers)}
		for i, name := range names {
			var v mgl64.Vec3
			ok := true
			for k := 0; k < 3; k++ {
				val, err := strconv.ParseFloat(cols[2+3*i+k], 64)
				if err != nil {
					return nil, fmt.Errorf("invalid position for %s in frame %d: %w", name, idx, err)
				}
				// NaN marks an occluded marker sample.
				if val != val {
					ok = false
					break
				}
				v[k] = val * scale
			}
			if ok {
				frame.Positions[name] = v
			}
		}
		t.Frames = append(t.Frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trc data: %w", err)
	}
	if len(t.Frames) == 0 {
		return nil, fmt.Errorf("trc file contains no frames")
	}
	return t, nil
}

func nextLine(scanner *bufio.Scanner) (string, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read trc header: %w", err)
		}
		return "", fmt.Errorf("unexpected end of trc header")
	}
	return strings.TrimRight(scanner.Text(), "\r\n"), nil
}

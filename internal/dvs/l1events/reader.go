package l1events

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/dvsvideo/internal/fsutil"
)

// Column names written by the DAVIS recording tools, plus short aliases.
var columnAliases = map[string]string{
	"timestamp":            "timestamp",
	"timeStamp":            "timestamp",
	"xAddr":                "x",
	"x":                    "x",
	"yAddr":                "y",
	"y":                    "y",
	"polarity(0=OFF 1=ON)": "polarity",
	"polarity":             "polarity",
}

// Header maps field roles to column positions in a record.
type Header struct {
	Names     []string
	Timestamp int
	X         int
	Y         int
	Polarity  int
}

// ParseHeader resolves the four required columns by name. Column order is
// free; unrecognised columns are logged and ignored.
func ParseHeader(names []string) (Header, error) {
	h := Header{Names: append([]string(nil), names...), Timestamp: -1, X: -1, Y: -1, Polarity: -1}
	for i, raw := range names {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		h.Names[i] = name
		switch columnAliases[name] {
		case "timestamp":
			h.Timestamp = i
		case "x":
			h.X = i
		case "y":
			h.Y = i
		case "polarity":
			h.Polarity = i
		default:
			log.Printf("[Ingest] unknown field %q ignored", name)
		}
	}

	missing := make([]string, 0, 4)
	if h.Timestamp < 0 {
		missing = append(missing, "timeStamp")
	}
	if h.X < 0 {
		missing = append(missing, "xAddr")
	}
	if h.Y < 0 {
		missing = append(missing, "yAddr")
	}
	if h.Polarity < 0 {
		missing = append(missing, "polarity(0=OFF 1=ON)")
	}
	if len(missing) > 0 {
		return Header{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return h, nil
}

// Reader streams Events from a CSV event log.
type Reader struct {
	csv      *csv.Reader
	closer   io.Closer
	header   Header
	geometry Geometry
	line     int
	lastTS   int64
}

// NewReader reads the header row from r and returns a Reader positioned at
// the first event.
func NewReader(r io.Reader, g Geometry) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	names, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	h, err := ParseHeader(names)
	if err != nil {
		return nil, err
	}
	return &Reader{csv: cr, header: h, geometry: g, line: 1, lastTS: math.MinInt64}, nil
}

// OpenFile opens path on fsys and returns a Reader. Close releases the file.
func OpenFile(fsys fsutil.FileSystem, path string, g Geometry) (*Reader, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	r, err := NewReader(f, g)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// Header returns the resolved column layout.
func (r *Reader) Header() Header { return r.header }

// Next returns the next event, or io.EOF once the log is exhausted.
func (r *Reader) Next() (Event, error) {
	rec, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return Event{}, &ParseError{Line: pe.Line, Err: pe.Err}
		}
		return Event{}, err
	}
	r.line++

	ts, err := r.parseInt(rec, r.header.Timestamp)
	if err != nil {
		return Event{}, err
	}
	rawX, err := r.parseInt(rec, r.header.X)
	if err != nil {
		return Event{}, err
	}
	rawY, err := r.parseInt(rec, r.header.Y)
	if err != nil {
		return Event{}, err
	}
	on, err := r.parsePolarity(rec, r.header.Polarity)
	if err != nil {
		return Event{}, err
	}
	if ts < r.lastTS {
		return Event{}, &ParseError{
			Line:   r.line,
			Column: r.header.Names[r.header.Timestamp],
			Value:  rec[r.header.Timestamp],
			Err:    fmt.Errorf("%w: %d after %d", ErrNotMonotonic, ts, r.lastTS),
		}
	}
	r.lastTS = ts

	x, y := r.geometry.Map(int(rawX), int(rawY))
	if !r.geometry.Contains(x, y) {
		return Event{}, &ParseError{
			Line:  r.line,
			Value: fmt.Sprintf("(%d,%d)", rawX, rawY),
			Err:   fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrOutOfRange, rawX, rawY, r.geometry.Width, r.geometry.Height),
		}
	}
	return Event{Timestamp: ts, X: x, Y: y, Activation: on}, nil
}

// Close releases the underlying file when the Reader was opened with OpenFile.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reader) parseInt(rec []string, col int) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(rec[col]), 10, 64)
	if err != nil {
		return 0, &ParseError{Line: r.line, Column: r.header.Names[col], Value: rec[col], Err: err}
	}
	return v, nil
}

func (r *Reader) parsePolarity(rec []string, col int) (bool, error) {
	s := strings.TrimSpace(rec[col])
	if n, err := strconv.Atoi(s); err == nil {
		return n == 1, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, &ParseError{Line: r.line, Column: r.header.Names[col], Value: rec[col], Err: err}
	}
	return b, nil
}

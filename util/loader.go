// Package util reads recorded detection sequences and writes tracker output
// for offline replay.
package util

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mot/images"
)

// ErrMalformedRecord is returned for input lines that are not valid records.
var ErrMalformedRecord = errors.New("malformed record")

// maxLineSize bounds one JSON Lines record.
const maxLineSize = 16 << 20

// Record is one frame of recorded detections.
type Record struct {
	// Frame is the source frame number. It is informational; the tracker
	// counts frames itself.
	Frame int `json:"frame"`
	// Reset starts a new, unrelated sequence before this frame is processed.
	Reset bool `json:"reset,omitempty"`
	// Detections are boxes on the unit plane.
	Detections []images.BboxXyxy `json:"detections"`
}

// RecordSource yields records one at a time and returns io.EOF when done.
type RecordSource interface {
	Next() (Record, error)
}

// RecordSlice serves records already loaded into memory.
type RecordSlice struct {
	records []Record
	pos     int
}

// NewRecordSlice creates a source over records.
func NewRecordSlice(records []Record) *RecordSlice {
	return &RecordSlice{records: records}
}

// Next returns the next record or io.EOF.
func (s *RecordSlice) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

// RecordReader decodes JSON Lines records one at a time.
type RecordReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewRecordReader creates a reader over r.
func NewRecordReader(r io.Reader) *RecordReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	return &RecordReader{scanner: scanner}
}

// Next returns the next record. Blank lines are skipped.
//
// Returns:
//   - Record: The decoded record.
//   - error: io.EOF at the end of input, ErrMalformedRecord (with the line
//     number) for undecodable or out-of-range lines, or a read error.
func (r *RecordReader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return Record{}, errors.Wrapf(ErrMalformedRecord, "line %d: %v", r.line, err)
		}
		if err := validate(rec); err != nil {
			return Record{}, errors.Wrapf(ErrMalformedRecord, "line %d: %v", r.line, err)
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, errors.Wrapf(err, "read line %d", r.line+1)
	}
	return Record{}, io.EOF
}

func validate(rec Record) error {
	for i, d := range rec.Detections {
		if d.HasNaN() {
			return errors.Errorf("detection %d has NaN coordinates", i)
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			return errors.Errorf("detection %d confidence %v outside [0,1]", i, d.Confidence)
		}
	}
	return nil
}

// ReadRecords decodes every record from r.
func ReadRecords(r io.Reader) ([]Record, error) {
	reader := NewRecordReader(r)
	var records []Record
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// LoadRecords reads a JSON Lines file.
//
// Arguments:
//   - path: The file to read.
//
// Returns:
//   - []Record: The records in file order.
//   - error: Error if loading fails.
func LoadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open records")
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return records, nil
}

// LoadDirectoryRecords reads per-frame JSON files named frame-<N>.json from
// a directory, ordered by frame number. Other files are ignored.
//
// Arguments:
// - dir: Directory path containing the frame files.
//
// Returns:
// - []Record: One record per frame file, with Frame taken from the file name.
// - error: Error if loading fails.
func LoadDirectoryRecords(dir string) ([]Record, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read directory")
	}

	var records []Record
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, "frame-") || filepath.Ext(name) != ".json" {
			continue
		}

		frame, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "frame-"), ".json"))
		if err != nil {
			return nil, errors.Wrapf(err, "frame number of %s", name)
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, errors.Wrapf(ErrMalformedRecord, "%s: %v", name, err)
		}
		if err := validate(rec); err != nil {
			return nil, errors.Wrapf(ErrMalformedRecord, "%s: %v", name, err)
		}
		rec.Frame = frame
		records = append(records, rec)
	}

	slices.SortFunc(records, func(a, b Record) int {
		return a.Frame - b.Frame
	})
	return records, nil
}

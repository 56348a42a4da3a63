package records

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
)

// #region files

// CreateFile creates path and any missing parent directories.
func CreateFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

// writeFile runs write against a freshly created file and reports the first error.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := CreateFile(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// #endregion files

// #region generations-jsonl

// WriteGenerations writes one JSON object per line.
func WriteGenerations(w io.Writer, gens []Generation) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range gens {
		if err := enc.Encode(&gens[i]); err != nil {
			return fmt.Errorf("encode generation %s/%s: %w", gens[i].QuestionID, gens[i].Condition, err)
		}
	}
	return nil
}

// WriteGenerationsFile writes gens to path as JSONL, replacing any existing file.
func WriteGenerationsFile(path string, gens []Generation) error {
	return writeFile(path, func(w io.Writer) error { return WriteGenerations(w, gens) })
}

// ReadGenerations parses JSONL generations. Lines that do not decode, or lack a
// question id or condition, are reported as RecordErrors and skipped.
func ReadGenerations(r io.Reader) ([]Generation, []*dataset.RecordError, error) {
	var (
		gens   []Generation
		issues []*dataset.RecordError
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var g Generation
		if err := json.Unmarshal(raw, &g); err != nil {
			issues = append(issues, &dataset.RecordError{Line: line, Err: fmt.Errorf("%w: %v", dataset.ErrMalformed, err)})
			continue
		}
		if g.QuestionID == "" || g.Condition == "" {
			issues = append(issues, &dataset.RecordError{
				Line:       line,
				QuestionID: g.QuestionID,
				Err:        fmt.Errorf("%w: missing question_id or condition", dataset.ErrMalformed),
			})
			continue
		}
		gens = append(gens, g)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read generations: %w", err)
	}
	return gens, issues, nil
}

// ReadGenerationsFile opens path and parses it with ReadGenerations.
func ReadGenerationsFile(path string) ([]Generation, []*dataset.RecordError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open generations %s: %w", path, err)
	}
	defer f.Close()
	return ReadGenerations(f)
}

// #endregion generations-jsonl

// #region scored-csv

var scoredHeader = []string{"question_id", "category", "condition", "label", "confidence", "reason"}

// WriteScored writes scored records as CSV with a header row. A nil
// confidence is written as an empty cell.
func WriteScored(w io.Writer, scored []Scored) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(scoredHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range scored {
		row := []string{
			s.QuestionID,
			string(s.Category),
			string(s.Condition),
			string(s.Label),
			FormatOptional(s.Confidence),
			s.Reason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s/%s: %w", s.QuestionID, s.Condition, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScoredFile writes scored records to path as CSV.
func WriteScoredFile(path string, scored []Scored) error {
	return writeFile(path, func(w io.Writer) error { return WriteScored(w, scored) })
}

// ReadScored parses CSV written by WriteScored. Columns are located by header
// name so extra columns are ignored. Rows with an unknown label or condition, or
// an unparseable confidence, are reported and skipped.
func ReadScored(r io.Reader) ([]Scored, []*dataset.RecordError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"question_id", "condition", "label"} {
		if _, ok := col[required]; !ok {
			return nil, nil, fmt.Errorf("scored csv missing column %q", required)
		}
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		out    []Scored
		issues []*dataset.RecordError
	)
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", line, err)
		}

		s := Scored{
			QuestionID: get(row, "question_id"),
			Category:   dataset.Category(get(row, "category")),
			Reason:     get(row, "reason"),
		}
		fail := func(err error) {
			issues = append(issues, &dataset.RecordError{
				Line:       line,
				QuestionID: s.QuestionID,
				Condition:  get(row, "condition"),
				Err:        fmt.Errorf("%w: %v", dataset.ErrMalformed, err),
			})
		}

		cond, err := prompt.ParseCondition(get(row, "condition"))
		if err != nil {
			fail(err)
			continue
		}
		s.Condition = cond
		label, err := ParseLabel(get(row, "label"))
		if err != nil {
			fail(err)
			continue
		}
		s.Label = label
		conf, err := ParseOptional(get(row, "confidence"))
		if err != nil {
			fail(err)
			continue
		}
		s.Confidence = conf
		out = append(out, s)
	}
	return out, issues, nil
}

// ReadScoredFile opens path and parses it with ReadScored.
func ReadScoredFile(path string) ([]Scored, []*dataset.RecordError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open scored %s: %w", path, err)
	}
	defer f.Close()
	return ReadScored(f)
}

// #endregion scored-csv

// #region optional-floats

// FormatOptional renders a nullable float for CSV; nil becomes "".
func FormatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ParseOptional reads a nullable float; "" becomes nil.
func ParseOptional(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse float %q: %w", s, err)
	}
	return &v, nil
}

// #endregion optional-floats

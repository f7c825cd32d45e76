package core

// import_reader.go turns a staged kids file into KidRow values.
//
// The first line is a header and is discarded without validation. Each
// following line must hold exactly first_name,last_name,birth_date with no
// quoting; a field containing a comma therefore fails the line, and so does
// a blank line. CRLF endings are accepted and fields are trimmed.

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// maxLineBytes bounds a single line of an import file.
const maxLineBytes = 1 << 20

// kidFieldCount is the arity of a data line.
const kidFieldCount = 3

type kidRowReader struct {
	scanner *bufio.Scanner
	line    int
}

func newKidRowReader(r io.Reader) *kidRowReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &kidRowReader{scanner: scanner}
}

// Next returns the next data row, io.EOF at the end of input, or a
// *RowError for a malformed line.
func (r *kidRowReader) Next() (KidRow, error) {
	for r.scanner.Scan() {
		r.line++
		if r.line == 1 {
			continue
		}
		text := r.scanner.Text()
		if strings.TrimSpace(text) == "" {
			return KidRow{}, &RowError{Line: r.line, Reason: "empty line"}
		}
		return parseKidRow(text, r.line)
	}
	if err := r.scanner.Err(); err != nil {
		return KidRow{}, fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	return KidRow{}, io.EOF
}

func parseKidRow(text string, line int) (KidRow, error) {
	fields := strings.Split(text, ",")
	if len(fields) != kidFieldCount {
		return KidRow{}, &RowError{
			Line:   line,
			Reason: fmt.Sprintf("expected %d fields, got %d", kidFieldCount, len(fields)),
		}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	if fields[0] == "" || fields[1] == "" {
		return KidRow{}, &RowError{Line: line, Reason: "required field is empty"}
	}

	bd, err := time.Parse(DateLayout, fields[2])
	if err != nil {
		return KidRow{}, &RowError{Line: line, Reason: fmt.Sprintf("invalid date %q, expected yyyy-MM-dd", fields[2])}
	}

	return KidRow{FirstName: fields[0], LastName: fields[1], BirthDate: bd}, nil
}

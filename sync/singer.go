// ABOUTME: Reads contacts from a Singer message stream
// ABOUTME: Accepts RECORD messages for the contacts stream, skips SCHEMA/STATE, and keeps the last STATE
package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hotgluexyz/target-everyaction/models"
)

// DefaultStream is the Singer stream carrying contacts.
const DefaultStream = "Contacts"

const maxSingerLine = 10 * 1024 * 1024

type singerMessage struct {
	Type   string          `json:"type"`
	Stream string          `json:"stream"`
	Record json.RawMessage `json:"record"`
	Value  json.RawMessage `json:"value"`
}

// RecordError is one input line that could not be read as a contact. The
// reader stays usable and moves on to the next line.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// SingerReader yields contacts from newline-delimited Singer messages.
// Lines without a "type" are read as bare contact objects.
type SingerReader struct {
	scanner   *bufio.Scanner
	stream    string
	line      int
	lastState json.RawMessage
}

func NewSingerReader(r io.Reader, stream string) *SingerReader {
	if stream == "" {
		stream = DefaultStream
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSingerLine)
	return &SingerReader{scanner: scanner, stream: stream}
}

func (s *SingerReader) Name() string {
	return "singer"
}

// LastState returns the value of the last STATE message seen, if any.
func (s *SingerReader) LastState() json.RawMessage {
	return s.lastState
}

// Next returns the next contact, or io.EOF at the end of input. A line that
// is not a readable contact is reported as *RecordError.
func (s *SingerReader) Next(ctx context.Context) (*models.Contact, error) {
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.line++

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg singerMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, &RecordError{Line: s.line, Err: fmt.Errorf("invalid JSON: %w", err)}
		}

		var raw json.RawMessage
		switch strings.ToUpper(msg.Type) {
		case "":
			raw = line
		case "RECORD":
			if !strings.EqualFold(msg.Stream, s.stream) {
				continue
			}
			raw = msg.Record
		case "STATE":
			s.lastState = append(json.RawMessage(nil), msg.Value...)
			continue
		default:
			continue
		}

		var contact models.Contact
		if err := json.Unmarshal(raw, &contact); err != nil {
			return nil, &RecordError{Line: s.line, Err: fmt.Errorf("invalid contact record: %w", err)}
		}
		return &contact, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return nil, io.EOF
}

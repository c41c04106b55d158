// Package source is the client side of the upstream generation service: it
// frames the chunked event-stream transport, classifies records into typed
// events, and exposes them as a channel the pipeline consumes.
package source

import (
	"bytes"
	"strconv"
	"strings"

	"mentorstream/internal/domain"
)

// terminationLiteral is the reserved data value signalling end-of-stream.
// It is recognized before any payload decoding is attempted.
const terminationLiteral = "[DONE]"

// FrameReader reconstructs discrete records from arbitrarily split chunks.
// A record is a group of "field: value" lines terminated by a blank line.
// The trailing incomplete fragment is carried over between Feed calls and
// is never emitted, not even at end of input: a record only exists once its
// boundary has actually been seen. Frames come out in arrival order,
// exactly once.
type FrameReader struct {
	buf  []byte
	done bool
}

// NewFrameReader creates an empty reader.
func NewFrameReader() *FrameReader {
	return &FrameReader{}
}

// Feed appends a chunk and returns every record completed by it.
func (r *FrameReader) Feed(chunk []byte) []domain.StreamFrame {
	if r.done {
		return nil
	}
	r.buf = append(r.buf, chunk...)

	var frames []domain.StreamFrame
	for {
		end, skip := recordBoundary(r.buf)
		if end < 0 {
			break
		}
		record := r.buf[:end]
		r.buf = r.buf[end+skip:]

		frame, ok := parseRecord(record)
		if !ok {
			continue
		}
		frames = append(frames, frame)
		if frame.Done {
			// Nothing after the termination literal is meaningful.
			r.done = true
			break
		}
	}
	return frames
}

// recordBoundary finds the earliest blank-line record terminator, CRLF or
// bare LF. Returns the record end index and the terminator width, or -1.
func recordBoundary(buf []byte) (end, skip int) {
	lf := bytes.Index(buf, []byte("\n\n"))
	crlf := bytes.Index(buf, []byte("\r\n\r\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf, 4
	case lf >= 0:
		return lf, 2
	default:
		return -1, 0
	}
}

// parseRecord decodes one record's "field: value" lines. Comment lines are
// skipped; multiple data lines join with "\n". Returns false for records
// carrying nothing at all.
func parseRecord(record []byte) (domain.StreamFrame, bool) {
	var frame domain.StreamFrame
	var dataParts []string
	sawField := false

	for _, line := range strings.Split(string(record), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		field, value := line, ""
		if i := strings.IndexByte(line, ':'); i >= 0 {
			field = line[:i]
			value = strings.TrimPrefix(line[i+1:], " ")
		}

		switch field {
		case "data":
			dataParts = append(dataParts, value)
			sawField = true
		case "event":
			frame.Event = value
			sawField = true
		case "id":
			frame.ID = value
			sawField = true
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil {
				frame.Retry = ms
			}
			sawField = true
		}
	}

	if !sawField {
		return domain.StreamFrame{}, false
	}

	frame.Data = strings.Join(dataParts, "\n")
	if frame.Data == terminationLiteral {
		return domain.StreamFrame{Done: true}, true
	}
	return frame, true
}

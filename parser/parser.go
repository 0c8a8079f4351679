// Package parser decodes tab-delimited CDN access logs (CloudFront standard
// format, plain or gzip-compressed) into typed raw events.
//
// Decoding is fault tolerant per line: a malformed line yields a DecodeError
// and the sequence continues. Only stream-level failures (unreadable gzip
// header, truncated read) end a file early.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"edgelytics/ingest/models"
)

// CloudFront standard log fields (version 1.0), by position.
const (
	fieldDate = iota
	fieldTime
	fieldEdgeLocation
	fieldBytesSent
	fieldClientIP
	fieldMethod
	fieldHost
	fieldURIPath
	fieldStatus
	fieldReferrer
	fieldUserAgent
	fieldQuery
	fieldCookie
	fieldEdgeResultType
	fieldRequestID
	fieldHostHeader
	fieldProtocol
	fieldBytesReceived
	fieldTimeTaken

	// Everything through time-taken must be present. Later columns vary by
	// log format version and are ignored.
	minFieldCount = fieldTimeTaken + 1
)

const commentPrefix = "#"

// maxLineLen bounds how much of a single line is buffered. Longer lines are
// drained and reported as a DecodeError; the file continues.
const maxLineLen = 1024 * 1024

const timestampLayout = "2006-01-02 15:04:05"

// DecodeError reports one malformed log line. The line is skipped and
// counted; decoding continues with the next line.
type DecodeError struct {
	Line   int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Events returns a lazy sequence of decoded events from r. Comment lines and
// blank lines are skipped. Per-line failures yield a *DecodeError; any other
// yielded error is a stream-level read failure and ends the sequence.
//
// Decoding is a pure function of the input bytes: the same stream always
// yields the same events.
func Events(r io.Reader, compressed bool) iter.Seq2[models.RawEvent, error] {
	return func(yield func(models.RawEvent, error) bool) {
		reader := r
		if compressed {
			gz, err := gzip.NewReader(r)
			if err != nil {
				yield(models.RawEvent{}, fmt.Errorf("gzip: %w", err))
				return
			}
			defer gz.Close()
			reader = gz
		}

		br := bufio.NewReaderSize(reader, 64*1024)

		lineNo := 0
		for {
			line, tooLong, err := readLine(br)
			if err != nil && err != io.EOF {
				yield(models.RawEvent{}, fmt.Errorf("read: %w", err))
				return
			}
			done := err == io.EOF
			if done && line == "" && !tooLong {
				return
			}
			lineNo++

			if tooLong {
				if !yield(models.RawEvent{}, &DecodeError{Line: lineNo, Reason: "line too long"}) {
					return
				}
			} else if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, commentPrefix) {
				event, perr := parseLine(line, lineNo)
				if perr != nil {
					if !yield(models.RawEvent{}, perr) {
						return
					}
				} else if !yield(event, nil) {
					return
				}
			}

			if done {
				return
			}
		}
	}
}

// readLine reads one newline-terminated line of any length. A line longer
// than maxLineLen is fully consumed but reported instead of returned, so one
// pathological line cannot sink the rest of the stream.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		frag, err := br.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, frag...)
			if len(buf) > maxLineLen {
				tooLong, buf = true, nil
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return string(buf), tooLong, err
	}
}

func parseLine(line string, lineNo int) (models.RawEvent, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < minFieldCount {
		return models.RawEvent{}, &DecodeError{
			Line:   lineNo,
			Reason: fmt.Sprintf("expected at least %d fields, got %d", minFieldCount, len(fields)),
		}
	}

	// CloudFront uses "-" for empty values.
	field := func(i int) string {
		if fields[i] == "-" {
			return ""
		}
		return fields[i]
	}

	date, tod := field(fieldDate), field(fieldTime)
	if date == "" || tod == "" {
		return models.RawEvent{}, &DecodeError{Line: lineNo, Reason: "missing date or time"}
	}
	ts, err := time.Parse(timestampLayout, date+" "+tod)
	if err != nil {
		return models.RawEvent{}, &DecodeError{Line: lineNo, Reason: "unparseable timestamp", Err: err}
	}

	var status int
	if s := field(fieldStatus); s != "" {
		status, err = strconv.Atoi(s)
		if err != nil {
			return models.RawEvent{}, &DecodeError{Line: lineNo, Reason: "unparseable status code", Err: err}
		}
		if status < 0 {
			return models.RawEvent{}, &DecodeError{Line: lineNo, Reason: "negative status code"}
		}
	}

	var bytesSent int64
	if s := field(fieldBytesSent); s != "" {
		bytesSent, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return models.RawEvent{}, &DecodeError{Line: lineNo, Reason: "unparseable bytes-sent", Err: err}
		}
		if bytesSent < 0 {
			return models.RawEvent{}, &DecodeError{Line: lineNo, Reason: "negative bytes-sent"}
		}
	}

	// CloudFront logs time-taken in fractional seconds.
	var timeTakenMs int64
	if s := field(fieldTimeTaken); s != "" {
		seconds, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.RawEvent{}, &DecodeError{Line: lineNo, Reason: "unparseable time-taken", Err: err}
		}
		if seconds < 0 {
			return models.RawEvent{}, &DecodeError{Line: lineNo, Reason: "negative time-taken"}
		}
		timeTakenMs = int64(seconds * 1000)
	}

	event := models.RawEvent{
		Timestamp:      ts.UTC(),
		ClientIP:       field(fieldClientIP),
		HTTPMethod:     field(fieldMethod),
		URLPath:        decodeField(field(fieldURIPath)),
		QueryString:    decodeField(field(fieldQuery)),
		StatusCode:     status,
		BytesSent:      bytesSent,
		Referrer:       decodeField(field(fieldReferrer)),
		UserAgent:      decodeField(field(fieldUserAgent)),
		EdgeLocation:   field(fieldEdgeLocation),
		EdgeResultType: field(fieldEdgeResultType),
		TimeTakenMs:    timeTakenMs,
	}
	if event.ClientIP != "" {
		event.VisitorID = HashVisitorID(event.ClientIP)
	}
	return event, nil
}

// decodeField percent-decodes a URL-encoded field. A decode failure degrades
// the field to empty rather than failing the whole event: a missing referrer
// is not fatal.
func decodeField(s string) string {
	if s == "" {
		return ""
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return ""
	}
	return decoded
}

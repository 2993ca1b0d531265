package wp

import (
	"bytes"
	"errors"
	"io"
)

// LineReader returns the next line from the device, blocking until one is
// available. It returns io.EOF once the stream has ended.
type LineReader func() ([]byte, error)

// MultiLineResult is a complete multi-line transfer: the classified status
// line, every body line in order, and the sentinel line that ended it.
type MultiLineResult struct {
	Status     Outcome
	Body       [][]byte
	Terminator []byte
}

// Collect reads a multi-line transfer. The first line is classified as the
// status; subsequent lines are accumulated until one starts with sentinel.
//
// Collect does not inspect Status. Callers must require KindSuccess before
// trusting Body.
func Collect(readLine LineReader, sentinel []byte) (MultiLineResult, error) {
	first, err := readLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return MultiLineResult{}, &ProtocolError{Err: ErrUnterminated}
		}
		return MultiLineResult{}, err
	}

	res := MultiLineResult{Status: Classify(first)}
	res.Body, res.Terminator, err = CollectBody(readLine, sentinel)
	return res, err
}

// CollectBody reads lines until one starts with sentinel and returns the
// lines before it along with the sentinel line itself. If readLine reports
// io.EOF first, the error is a *ProtocolError wrapping ErrUnterminated.
// Other read errors are returned unchanged together with the partial body.
func CollectBody(readLine LineReader, sentinel []byte) (body [][]byte, terminator []byte, err error) {
	for {
		line, err := readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				var last []byte
				if n := len(body); n > 0 {
					last = body[n-1]
				}
				return body, nil, &ProtocolError{Raw: last, Err: ErrUnterminated}
			}
			return body, nil, err
		}
		if bytes.HasPrefix(line, sentinel) {
			return body, bytes.Clone(line), nil
		}
		body = append(body, bytes.Clone(line))
	}
}

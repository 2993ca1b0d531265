package wp

import (
	"bytes"
	"regexp"
	"strconv"
)

var (
	// Everything after '=' up to the end of the line holds the capture groups.
	okPattern  = regexp.MustCompile(`\$OK:(\w+)=([^\r\n]*)`)
	errPattern = regexp.MustCompile(`\$ERR:(?:(\w+)=)?(\d+)`)
)

// Outcome is the classification of a single device line. Exactly one of the
// variants selected by Kind is meaningful:
//
//   - KindSuccess: ID and Captures (at least one non-empty group, possibly
//     alongside empty ones)
//   - KindFailure: Code, and ID when the device named the command
//   - KindUnparsable: only Raw
//
// Raw always holds a copy of the classified line.
type Outcome struct {
	Kind     Kind
	ID       []byte
	Captures [][]byte
	Code     uint
	Raw      []byte
}

// Fields returns the captures as strings.
func (o Outcome) Fields() []string {
	out := make([]string, len(o.Captures))
	for i, c := range o.Captures {
		out[i] = string(c)
	}
	return out
}

// Classify inspects one line of device output. The Success pattern is tried
// first, then the Failure pattern; a line matching neither is Unparsable.
//
// A Success line captures every comma-separated group following '=', with no
// upper bound; a line whose groups are all empty is Unparsable. A Failure line is returned with its numeric code even when the
// code has no entry in the message table.
func Classify(line []byte) Outcome {
	raw := bytes.Clone(line)

	if m := okPattern.FindSubmatch(raw); m != nil && len(bytes.Trim(m[2], ",")) > 0 {
		groups := bytes.Split(m[2], []byte{','})
		return Outcome{
			Kind:     KindSuccess,
			ID:       m[1],
			Captures: groups,
			Raw:      raw,
		}
	}

	if m := errPattern.FindSubmatch(raw); m != nil {
		code, err := strconv.ParseUint(string(m[2]), 10, 0)
		if err == nil {
			return Outcome{
				Kind: KindFailure,
				ID:   m[1],
				Code: uint(code),
				Raw:  raw,
			}
		}
	}

	return Outcome{Kind: KindUnparsable, Raw: raw}
}

package wp

import (
	"bytes"
	"slices"
)

// Command is a request to the device: a command name and its ordered
// parameters. Build it with NewCommand; the zero value is not valid.
type Command struct {
	name   []byte
	params [][]byte
}

// NewCommand copies name and params so later changes by the caller do not
// leak into the command.
func NewCommand(name string, params ...string) Command {
	c := Command{name: []byte(name)}
	for _, p := range params {
		c.params = append(c.params, []byte(p))
	}
	return c
}

// Name returns the command identifier, e.g. "VER".
func (c Command) Name() string { return string(c.name) }

// Params returns a copy of the command parameters.
func (c Command) Params() []string {
	out := make([]string, len(c.params))
	for i, p := range c.params {
		out[i] = string(p)
	}
	return out
}

// Frame encodes the command with the given token.
func (c Command) Frame(token []byte) ([]byte, error) {
	return Encode(c.name, token, c.params...)
}

// Encode builds the wire frame $WP+<name>=<token>[,<param>...]\r.
//
// Parameters are appended in order, each preceded by a comma; there is no
// trailing separator when params is empty. Encode performs no escaping, so
// bytes that would end the frame early or shift its fields are rejected with
// ErrInvalidByte: CR or LF anywhere, '=' or ',' in the name, ',' in the
// token.
func Encode(name, token []byte, params ...[]byte) ([]byte, error) {
	if len(name) == 0 {
		return nil, &FramingError{Err: ErrEmptyName}
	}
	if bytes.ContainsAny(name, "\r\n=,") {
		return nil, &FramingError{Command: string(name), Err: ErrInvalidByte}
	}
	if len(token) == 0 {
		return nil, &FramingError{Command: string(name), Err: ErrEmptyToken}
	}
	if bytes.ContainsAny(token, "\r\n,") {
		return nil, &FramingError{Command: string(name), Err: ErrInvalidByte}
	}
	for _, p := range params {
		if bytes.ContainsAny(p, "\r\n") {
			return nil, &FramingError{Command: string(name), Err: ErrInvalidByte}
		}
	}

	size := len(RequestPrefix) + len(name) + 1 + len(token) + len(CR)
	for _, p := range params {
		size += 1 + len(p)
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.WriteString(RequestPrefix)
	buf.Write(name)
	buf.WriteByte('=')
	buf.Write(token)
	for _, p := range params {
		buf.WriteByte(',')
		buf.Write(p)
	}
	buf.WriteString(CR)
	return buf.Bytes(), nil
}

// Redact returns a printable copy of frame with the token replaced by "***"
// and the trailing CR removed. It is meant for log output only.
func Redact(frame []byte) string {
	frame = bytes.TrimSuffix(frame, []byte(CR))
	eq := bytes.IndexByte(frame, '=')
	if eq < 0 {
		return string(frame)
	}
	rest := frame[eq+1:]
	masked := slices.Clone(frame[:eq+1])
	masked = append(masked, "***"...)
	if comma := bytes.IndexByte(rest, ','); comma >= 0 {
		masked = append(masked, rest[comma:]...)
	}
	return string(masked)
}

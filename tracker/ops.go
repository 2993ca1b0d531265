package tracker

import (
	"context"
	"fmt"

	"i4.energy/across/tk5000/wp"
)

// Version queries the firmware version ($WP+VER).
func (t *Tracker) Version(ctx context.Context) (string, error) {
	fields, err := t.exec(ctx, wp.NewCommand(wp.CmdVersion))
	if err != nil {
		return "", err
	}
	return string(fields[0]), nil
}

// Location queries the current position report ($WP+GETLOCATION). The
// fields are returned in device order; their layout depends on the firmware.
func (t *Tracker) Location(ctx context.Context) ([]string, error) {
	fields, err := t.exec(ctx, wp.NewCommand(wp.CmdLocation))
	if err != nil {
		return nil, err
	}
	return toStrings(fields), nil
}

// SOSContact queries the emergency SMS number ($WP+EMSMS with "?").
func (t *Tracker) SOSContact(ctx context.Context) (string, error) {
	fields, err := t.exec(ctx, wp.NewCommand(wp.CmdSOSContact, wp.ParamQuery))
	if err != nil {
		return "", err
	}
	return string(fields[0]), nil
}

// DownloadPositions reads the stored position log ($WP+DLREC) and decodes
// it. The command parameters come from WithDownloadParams.
//
// Decoding stops at the first malformed line and returns a *DecodeError; the
// transfer itself has completed at that point, so the session stays usable.
func (t *Tracker) DownloadPositions(ctx context.Context) ([]PositionRecord, error) {
	res, err := t.transfer(ctx, wp.NewCommand(wp.CmdDownloadRecords, t.config.downloadParams...), []byte(wp.MsgPrefix))
	if err != nil {
		return nil, err
	}
	return DecodePositions(res.Body)
}

// Exec sends an arbitrary single-line command and returns the captured
// fields. Errors follow the same taxonomy as the named operations.
func (t *Tracker) Exec(ctx context.Context, name string, params ...string) ([]string, error) {
	fields, err := t.exec(ctx, wp.NewCommand(name, params...))
	if err != nil {
		return nil, err
	}
	return toStrings(fields), nil
}

// Transfer sends an arbitrary command whose response is a multi-line
// transfer ending with a line that starts with sentinel.
func (t *Tracker) Transfer(ctx context.Context, name, sentinel string, params ...string) (wp.MultiLineResult, error) {
	if sentinel == "" {
		return wp.MultiLineResult{}, fmt.Errorf("tracker: %s: empty sentinel", name)
	}
	return t.transfer(ctx, wp.NewCommand(name, params...), []byte(sentinel))
}

func toStrings(fields [][]byte) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

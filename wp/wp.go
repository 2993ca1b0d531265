// Package wp implements the line-oriented "$WP+" command protocol spoken by
// TK5000-family GPS/GSM trackers over a serial link.
//
// A request is a single frame of the form
//
//	$WP+<COMMAND>=<TOKEN>[,<PARAM>]*\r
//
// and the device answers with one line containing either "$OK:" or "$ERR:".
// Some commands stream additional body lines after the status line and end
// the transfer with a line starting with "$MSG:".
package wp

const (
	// Terminal Control
	CR   = "\r"
	LF   = "\n"
	CRLF = "\r\n"

	// Framing
	RequestPrefix = "$WP+"
	OKPrefix      = "$OK:"
	ErrPrefix     = "$ERR:"
	MsgPrefix     = "$MSG:"

	// Commands
	CmdVersion         = "VER"
	CmdLocation        = "GETLOCATION"
	CmdSOSContact      = "EMSMS"
	CmdDownloadRecords = "DLREC"

	// ParamQuery asks the device to report a setting instead of changing it.
	ParamQuery = "?"
)

// MaxLineLength bounds a single response line. Position log lines are short;
// anything longer is treated as a framing problem on the serial link.
const MaxLineLength = 4096

// Kind tags the variant held by an Outcome.
type Kind int

const (
	KindUnparsable Kind = iota // neither $OK: nor $ERR:
	KindSuccess                // $OK:<ID>=<FIELD>(,<FIELD>)*
	KindFailure                // $ERR:[<ID>=]<CODE>
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	default:
		return "unparsable"
	}
}

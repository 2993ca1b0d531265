package wp

// UnknownErrorMessage is returned by Message for codes missing from the table.
const UnknownErrorMessage = "unknown error"

var errorMessages = map[uint]string{
	1: "wrong password",
	2: "invalid command",
	3: "invalid parameter",
	4: "command failed to execute",
	5: "device busy",
	6: "no GPS fix available",
	7: "no records stored",
}

// Message returns the human readable description of a device error code.
func Message(code uint) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return UnknownErrorMessage
}

// Known reports whether code has an entry in the message table.
func Known(code uint) bool {
	_, ok := errorMessages[code]
	return ok
}

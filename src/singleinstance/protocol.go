package singleinstance

const (
	residentHost = "127.0.0.1"

	pingRequest          = "PING\n"
	pongResponse         = "PONG\n"
	triggerRequest       = "TRIGGER\n"
	triggerStdoutRequest = "TRIGGER_STDOUT\n"
	successStatus        = "SUCCESS\n"
	errorStatus          = "ERROR\n"
)

func requestLine(outputToStdout bool) string {
	if outputToStdout {
		return triggerStdoutRequest
	}
	return triggerRequest
}

// RemoteError is an ERROR answer from the resident, as opposed to a
// transport failure.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return e.Msg }

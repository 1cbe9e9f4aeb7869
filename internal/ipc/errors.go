package ipc

import (
	"errors"
	"fmt"
	"net/rpc"
	"strings"

	"toolbox/internal/services"
)

// RemoteError is a daemon-side failure with its taxonomy kind preserved, so
// services.Kind classifies it the same way on both ends of the socket.
type RemoteError struct {
	kind    string
	message string
}

func (e *RemoteError) Error() string { return e.message }

// Kind reports the taxonomy tag assigned by the daemon.
func (e *RemoteError) Kind() string { return e.kind }

// encodeError prefixes err's message with its kind for the wire.
func encodeError(err error) error {
	if err == nil {
		return nil
	}
	kind := services.Kind(err)
	if kind == "" {
		return err
	}
	return fmt.Errorf("[%s] %s", kind, err.Error())
}

// decodeError turns a kind-prefixed server error back into a RemoteError.
// Transport failures pass through untouched.
func decodeError(err error) error {
	if err == nil {
		return nil
	}
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	text := string(serverErr)
	if strings.HasPrefix(text, "[") {
		if end := strings.Index(text, "] "); end > 1 {
			return &RemoteError{kind: text[1:end], message: text[end+2:]}
		}
	}
	return &RemoteError{kind: services.KindInternal, message: text}
}

// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// Every api.Service operation has a one-to-one RPC method; request and
// response types are aliases of the api DTOs so the protocol and the
// in-process surface cannot drift. Errors cross the socket with their
// taxonomy kind prefixed and come back as *RemoteError, which services.Kind
// understands. Client calls take a context so CLI commands stop waiting when
// the user interrupts them.
package ipc

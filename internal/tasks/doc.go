// Package tasks persists the history of operations run through the toolbox
// surface in SQLite.
//
// Every call to the operation surface creates one Task that moves from
// pending to running and ends as completed or failed. The store is the only
// state shared between concurrent callers; SQLite runs in WAL mode with a busy
// timeout so writes from parallel RPCs serialize inside the database.
//
// Schema changes bump schemaVersion in schema.go. Opening a database written
// with an older version rebuilds it empty; a newer version is refused.
package tasks

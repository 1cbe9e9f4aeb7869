package tasks

import (
	"database/sql"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id         string
		kind       string
		statusStr  string
		target     sql.NullString
		message    sql.NullString
		errorKind  sql.NullString
		requestID  sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&id,
		&kind,
		&statusStr,
		&target,
		&message,
		&errorKind,
		&requestID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	return &Task{
		ID:        id,
		Kind:      kind,
		Status:    Status(statusStr),
		Target:    target.String,
		Message:   message.String,
		ErrorKind: errorKind.String,
		RequestID: requestID.String,
		CreatedAt: parseTime(createdRaw),
		UpdatedAt: parseTime(updatedRaw),
	}, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

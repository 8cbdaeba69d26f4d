package generator

import (
	"context"
	"errors"
	"strings"
)

// Backend wraps one AI provider able to turn a prompt into program text.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Availability is implemented by backends that can tell, without a network
// call, that they are not configured.
type Availability interface {
	Available() bool
}

// BackupProvider is implemented by backends holding a secondary credential.
// The router retries once with the returned backend.
type BackupProvider interface {
	Backup() Backend
}

// ErrEmptyResponse is returned when a backend answers without usable text.
var ErrEmptyResponse = errors.New("backend returned no program text")

// placeholders ship in sample .env files and are never real credentials.
var placeholders = map[string]struct{}{
	"your_aws_access_key": {},
	"your_aws_secret_key": {},
	"your_api_key":        {},
	"changeme":            {},
}

func configured(values ...string) bool {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			return false
		}
		if _, ok := placeholders[strings.ToLower(v)]; ok {
			return false
		}
	}
	return true
}

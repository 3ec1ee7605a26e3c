package endpoints

import "github.com/pysal/release2news/types"

type ConfigParams struct {
	Name  string
	Value string
}

// NotificationEndpoint announces new releases.
type NotificationEndpoint interface {
	// Announce delivers announcement of the release to every configured recipient
	Announce(pkg string, release types.Release, link string) error
	// Process delivers messages left undelivered by previous runs
	Process() error
	Close() error
}

package db

import (
	"github.com/pkg/errors"

	"github.com/pysal/release2news/types"
)

var (
	// ErrStoreMissing is returned when no catalog snapshot was ever saved
	ErrStoreMissing = errors.New("release catalog not found, run refresh first")
	// ErrStoreCorrupt is returned when catalog artifact can't be read
	ErrStoreCorrupt = errors.New("release catalog is corrupt")
)

type Database interface {
	// SaveCatalog replaces previously saved catalog as a whole
	SaveCatalog(catalog types.Catalog) error
	LoadCatalog() (types.Catalog, error)

	// Resend Queue
	AddMessagesToResendQueue(messages []*types.NotificationMessage) error
	GetMessagesFromResendQueue() ([]*types.NotificationMessage, error)

	Close() error
}

package db

import (
	"database/sql"
	"os"
	"time"

	"github.com/lomik/zapwriter"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pysal/release2news/types"
)

const (
	currentSchemaVersion = 1
)

const schema = `
	CREATE TABLE IF NOT EXISTS 'schema_version' (
		'id' INTEGER PRIMARY KEY AUTOINCREMENT,
		'version' INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS 'catalog' (
		'position' INTEGER PRIMARY KEY,
		'package' VARCHAR(255) NOT NULL,
		'tag' VARCHAR(255),
		'published_at' VARCHAR(64)
	);

	CREATE TABLE IF NOT EXISTS 'snapshot' (
		'id' INTEGER PRIMARY KEY,
		'refreshed_at' DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS 'resend_queue' (
		'id' INTEGER PRIMARY KEY AUTOINCREMENT,
		'chat_id' Int64,
		'message' TEXT NOT NULL
	);

	INSERT INTO 'schema_version' (id, version) values (1, 1);
`

type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens database at path, creating file and schema if needed.
func NewSQLite(path string) (*SQLite, error) {
	d, err := open(path)
	if err != nil {
		return nil, err
	}

	err = d.initSchema()
	if err != nil {
		d.db.Close()
		return nil, err
	}
	return d, nil
}

// OpenSQLite opens existing database without creating it.
func OpenSQLite(path string) (*SQLite, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrStoreMissing, "database %q", path)
		}
		return nil, errors.Wrapf(ErrStoreCorrupt, "database %q: %v", path, err)
	}

	d, err := open(path)
	if err != nil {
		return nil, err
	}

	version, err := d.schemaVersion()
	if err == nil && version != currentSchemaVersion {
		err = errors.Errorf("unknown schema version %d", version)
	}
	if err != nil {
		d.db.Close()
		return nil, errors.Wrapf(ErrStoreCorrupt, "database %q: %v", path, err)
	}
	return d, nil
}

func open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open database file")
	}

	return &SQLite{
		db:     db,
		logger: zapwriter.Logger("sqlite").With(zap.String("database", path)),
	}, nil
}

func (d *SQLite) schemaVersion() (int, error) {
	version := 0
	err := d.db.QueryRow("SELECT version from 'schema_version' where id=1").Scan(&version)
	return version, err
}

func (d *SQLite) initSchema() error {
	version, err := d.schemaVersion()
	if err != nil {
		if err.Error() != "no such table: schema_version" {
			return errors.Wrapf(ErrStoreCorrupt, "failed to query database version: %v", err)
		}
		d.logger.Info("initializing database schema",
			zap.Int("version", currentSchemaVersion),
		)
		_, err = d.db.Exec(schema)
		if err != nil {
			return errors.Wrap(err, "failed to initialize database")
		}
		return nil
	}

	if version != currentSchemaVersion {
		return errors.Wrapf(ErrStoreCorrupt, "unknown schema version %d", version)
	}
	return nil
}

func (d *SQLite) Close() error {
	return d.db.Close()
}

// SaveCatalog - replaces stored catalog in a single transaction
func (d *SQLite) SaveCatalog(catalog types.Catalog) error {
	tx, err := d.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.Exec("DELETE FROM 'catalog'")
	if err != nil {
		return errors.Wrap(err, "failed to clear catalog")
	}

	stmt, err := tx.Prepare("INSERT INTO 'catalog' (position, package, tag, published_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "error creating statement")
	}
	defer stmt.Close()

	for i, e := range catalog {
		var tag, publishedAt sql.NullString
		if e.Release != nil {
			tag = sql.NullString{String: e.Release.Tag, Valid: true}
			publishedAt = sql.NullString{String: e.Release.PublishedAt, Valid: true}
		}
		_, err = stmt.Exec(i, e.Package, tag, publishedAt)
		if err != nil {
			return errors.Wrapf(err, "failed to save package %q", e.Package)
		}
	}

	_, err = tx.Exec("INSERT OR REPLACE INTO 'snapshot' (id, refreshed_at) VALUES (1, ?)", time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to update snapshot time")
	}

	err = tx.Commit()
	if err != nil {
		return errors.Wrap(err, "failed to commit catalog")
	}

	d.logger.Debug("catalog saved",
		zap.Int("packages", len(catalog)),
	)
	return nil
}

func (d *SQLite) LoadCatalog() (types.Catalog, error) {
	var refreshedAt time.Time
	err := d.db.QueryRow("SELECT refreshed_at FROM 'snapshot' WHERE id=1").Scan(&refreshedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrStoreMissing
		}
		return nil, errors.Wrapf(ErrStoreCorrupt, "failed to read snapshot: %v", err)
	}

	rows, err := d.db.Query("SELECT package, tag, published_at FROM 'catalog' ORDER BY position")
	if err != nil {
		return nil, errors.Wrapf(ErrStoreCorrupt, "failed to read catalog: %v", err)
	}
	defer rows.Close()

	result := make(types.Catalog, 0)
	for rows.Next() {
		var pkg string
		var tag, publishedAt sql.NullString
		err = rows.Scan(&pkg, &tag, &publishedAt)
		if err != nil {
			return nil, errors.Wrapf(ErrStoreCorrupt, "error retreiving data: %v", err)
		}
		e := types.CatalogEntry{Package: pkg}
		if tag.Valid != publishedAt.Valid {
			return nil, errors.Wrapf(ErrStoreCorrupt, "package %q: incomplete release", pkg)
		}
		if tag.Valid {
			e.Release = &types.Release{Tag: tag.String, PublishedAt: publishedAt.String}
		}
		result = append(result, e)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrapf(ErrStoreCorrupt, "error retreiving data: %v", err)
	}

	d.logger.Debug("catalog loaded",
		zap.Int("packages", len(result)),
		zap.Time("refreshed_at", refreshedAt),
	)
	return result, nil
}

func (d *SQLite) AddMessagesToResendQueue(messages []*types.NotificationMessage) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}

	for _, m := range messages {
		_, err = tx.Exec("INSERT INTO 'resend_queue' (chat_id, message) VALUES (?, ?)", m.ChatID, m.Message)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// GetMessagesFromResendQueue - returns queued messages and removes them from the queue
func (d *SQLite) GetMessagesFromResendQueue() ([]*types.NotificationMessage, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.Query("SELECT chat_id, message FROM 'resend_queue' ORDER BY id")
	if err != nil {
		return nil, err
	}

	var result []*types.NotificationMessage
	for rows.Next() {
		m := &types.NotificationMessage{}
		err = rows.Scan(&m.ChatID, &m.Message)
		if err != nil {
			d.logger.Error("error retreiving data",
				zap.Error(err),
			)
			continue
		}
		result = append(result, m)
	}
	rows.Close()

	_, err = tx.Exec("DELETE FROM 'resend_queue'")
	if err != nil {
		return nil, err
	}

	return result, tx.Commit()
}

package db

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"

	"github.com/pysal/release2news/types"
)

const (
	testDbName = "testrelease2news.dbdata"
)

type SQLiteSuite struct {
	suite.Suite
	dir string
	db  Database
}

func (s *SQLiteSuite) SetupSuite() {
	var err error
	s.dir, err = os.MkdirTemp("", "release2news")
	s.Require().NoError(err)
}

func (s *SQLiteSuite) SetupTest() {
	var err error
	_ = os.Remove(filepath.Join(s.dir, testDbName))
	s.db, err = NewSQLite(filepath.Join(s.dir, testDbName))
	s.Require().NoError(err)
}

func (s *SQLiteSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func (s *SQLiteSuite) TearDownSuite() {
	os.RemoveAll(s.dir)
}

func (s *SQLiteSuite) TestCatalogRoundTrip() {
	catalog := types.Catalog{
		{Package: "esda", Release: &types.Release{Tag: "v2.5.0", PublishedAt: "2023-11-07T10:22:31Z"}},
		{Package: "tobler", Release: nil},
		{Package: "access", Release: &types.Release{Tag: "1.1.9", PublishedAt: "2023-02-01T08:00:00Z"}},
		{Package: "spvcm", Release: &types.Release{Tag: "", PublishedAt: ""}},
	}

	r := s.Require()
	r.NoError(s.db.SaveCatalog(catalog))

	loaded, err := s.db.LoadCatalog()
	r.NoError(err)
	r.Equal(catalog, loaded)
}

func (s *SQLiteSuite) TestSaveReplacesCatalog() {
	r := s.Require()
	r.NoError(s.db.SaveCatalog(types.Catalog{
		{Package: "esda", Release: &types.Release{Tag: "v2.4.0", PublishedAt: "2023-01-07T10:22:31Z"}},
		{Package: "giddy", Release: &types.Release{Tag: "v2.3.4", PublishedAt: "2023-03-07T10:22:31Z"}},
	}))

	second := types.Catalog{
		{Package: "esda", Release: nil},
	}
	r.NoError(s.db.SaveCatalog(second))

	loaded, err := s.db.LoadCatalog()
	r.NoError(err)
	r.Equal(second, loaded)
}

func (s *SQLiteSuite) TestEmptyCatalog() {
	r := s.Require()
	r.NoError(s.db.SaveCatalog(types.Catalog{}))

	loaded, err := s.db.LoadCatalog()
	r.NoError(err)
	r.Empty(loaded)
}

func (s *SQLiteSuite) TestLoadWithoutSnapshot() {
	_, err := s.db.LoadCatalog()
	s.Require().True(errors.Is(err, ErrStoreMissing))
}

func (s *SQLiteSuite) TestOpenMissingFile() {
	_, err := OpenSQLite(filepath.Join(s.dir, "does-not-exist.db"))
	s.Require().True(errors.Is(err, ErrStoreMissing))
}

func (s *SQLiteSuite) TestOpenCorruptFile() {
	path := filepath.Join(s.dir, "corrupt.db")
	s.Require().NoError(os.WriteFile(path, bytes.Repeat([]byte("not a sqlite database "), 100), 0644))

	_, err := OpenSQLite(path)
	s.Require().True(errors.Is(err, ErrStoreCorrupt))
}

func (s *SQLiteSuite) TestOpenExisting() {
	r := s.Require()
	catalog := types.Catalog{
		{Package: "esda", Release: &types.Release{Tag: "v2.5.0", PublishedAt: "2023-11-07T10:22:31Z"}},
	}
	r.NoError(s.db.SaveCatalog(catalog))

	d, err := OpenSQLite(filepath.Join(s.dir, testDbName))
	r.NoError(err)
	defer d.Close()

	loaded, err := d.LoadCatalog()
	r.NoError(err)
	r.Equal(catalog, loaded)
}

func (s *SQLiteSuite) TestResendQueue() {
	r := s.Require()
	messages := []*types.NotificationMessage{
		{ChatID: 1, Message: "esda 2.5.0 released"},
		{ChatID: -100, Message: "tobler 0.11.2 released"},
	}
	r.NoError(s.db.AddMessagesToResendQueue(messages))

	got, err := s.db.GetMessagesFromResendQueue()
	r.NoError(err)
	r.Equal(messages, got)

	got, err = s.db.GetMessagesFromResendQueue()
	r.NoError(err)
	r.Empty(got)
}

func TestDBSuite(t *testing.T) {
	ts := &SQLiteSuite{}
	suite.Run(t, ts)
}

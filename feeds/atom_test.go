package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pysal/release2news/github"
)

const releasesAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:media="http://search.yahoo.com/mrss/" xml:lang="en-US">
  <id>tag:github.com,2008:https://github.com/pysal/esda/releases</id>
  <link type="text/html" rel="alternate" href="https://github.com/pysal/esda/releases"/>
  <title>Release notes from esda</title>
  <updated>2023-11-07T10:22:31Z</updated>
  <entry>
    <id>tag:github.com,2008:Repository/1/v2.5.0</id>
    <updated>2023-11-07T12:22:31+02:00</updated>
    <link rel="alternate" type="text/html" href="https://github.com/pysal/esda/releases/tag/v2.5.0"/>
    <title>esda 2.5.0</title>
    <content type="html">&lt;p&gt;bug fixes&lt;/p&gt;</content>
  </entry>
  <entry>
    <id>tag:github.com,2008:Repository/1/v2.4.3</id>
    <updated>2023-01-07T10:22:31Z</updated>
    <link rel="alternate" type="text/html" href="https://github.com/pysal/esda/releases/tag/v2.4.3"/>
    <title>v2.4.3</title>
  </entry>
</feed>`

func TestAtomSourceLatestRelease(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pysal/esda/releases.atom" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(releasesAtom))
	}))
	defer server.Close()

	s := NewAtomSource(server.URL, "release2news-test", 5*time.Second)

	release, err := s.LatestRelease(context.Background(), "pysal", "esda")
	require.NoError(t, err)
	assert.Equal(t, "v2.5.0", release.Tag)
	assert.Equal(t, "2023-11-07T10:22:31Z", release.PublishedAt)

	_, err = s.LatestRelease(context.Background(), "pysal", "tobler")
	require.Error(t, err)
	var fetchErr *github.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.True(t, errors.Is(err, github.ErrNotFound))
}

func TestAtomSourceEmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Release notes from spvcm</title></feed>`))
	}))
	defer server.Close()

	s := NewAtomSource(server.URL, "", 5*time.Second)
	release, err := s.LatestRelease(context.Background(), "pysal", "spvcm")
	require.Error(t, err)
	assert.Nil(t, release)
	assert.True(t, errors.Is(err, github.ErrNotFound))
}

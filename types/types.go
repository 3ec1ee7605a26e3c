package types

import "strings"

// Release is the latest published release of a package.
// PublishedAt is kept as the ISO-8601 UTC string returned by GitHub, so that
// releases can be compared lexicographically against the news watermark.
type Release struct {
	Tag         string `json:"tag" yaml:"tag"`
	PublishedAt string `json:"published_at" yaml:"published_at"`
}

// Version returns tag without a leading "v" marker
func (r Release) Version() string {
	return strings.TrimPrefix(r.Tag, "v")
}

// Date returns date part (YYYY-MM-DD) of PublishedAt
func (r Release) Date() string {
	date, _, _ := strings.Cut(r.PublishedAt, "T")
	return date
}

type CatalogEntry struct {
	Package string
	// Release is nil when package have no release or fetch failed
	Release *Release
}

// Catalog is an ordered mapping from package name to its latest release.
type Catalog []CatalogEntry

func (c Catalog) Get(pkg string) (*Release, bool) {
	for _, e := range c {
		if e.Package == pkg {
			return e.Release, true
		}
	}
	return nil, false
}

type NotificationMessage struct {
	ChatID  int64
	Message string
}

// TODO: Create a proper text to markdown converter
var MdReplacer = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"~", "\\~",
	">", "\\>",
	"=", "\\=",
	"|", "\\|",
	"!", "\\!",
	".", "\\.",
	"-", "\\-",
	"#", "\\#",
	",", "\\,",
	"(", "\\(",
	")", "\\)",
	"[", "\\[",
	"]", "\\]",
	"{", "\\{",
	"}", "\\}",
	"+", "\\+",
)

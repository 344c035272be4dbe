package transcode

import (
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// Tags is the embedded metadata of a compressed recording
type Tags struct {
	Format  string `json:"format"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Comment string `json:"comment"`
	Year    int    `json:"year"`
}

// Summary joins the title and comment for use as free-form notes
func (t *Tags) Summary() string {
	var parts []string
	for _, s := range []string{t.Title, t.Comment} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

// ReadTags reads ID3, MP4, FLAC or Ogg metadata. WAV files carry none that
// the reader understands and return ErrUnsupportedFormat.
func ReadTags(path string) (*Tags, error) {
	if !IsCompressed(path) {
		return nil, fmt.Errorf("%w: no tag support for %s", ErrUnsupportedFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}

	return &Tags{
		Format:  string(m.Format()),
		Title:   m.Title(),
		Artist:  m.Artist(),
		Comment: m.Comment(),
		Year:    m.Year(),
	}, nil
}

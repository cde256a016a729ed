package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
)

// encode compresses data; the gzip header carries the original file name so
// a restore does not depend on the registry entry still existing.
func encode(w io.Writer, data []byte, origName string, ts time.Time, level int) error {
	zw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return err
	}
	zw.Name, zw.Comment = headerName(origName)
	zw.ModTime = ts

	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Contents is a decompressed artifact.
type Contents struct {
	Data     []byte
	OrigName string
}

// Read decompresses the artifact at a.StoragePath.
func Read(a Artifact) (Contents, error) {
	f, err := os.Open(a.StoragePath)
	if err != nil {
		return Contents{}, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return Contents{}, fmt.Errorf("opening %s: %w", a.ID(), err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		return Contents{}, fmt.Errorf("decompressing %s: %w", a.ID(), err)
	}
	name, err := decodeHeaderName(zr.Name, zr.Comment)
	if err != nil {
		return Contents{}, fmt.Errorf("reading name of %s: %w", a.ID(), err)
	}
	return Contents{Data: buf.Bytes(), OrigName: name}, nil
}

// escapedName marks a header Name stored path-escaped.
const escapedName = "name:path-escaped"

// headerName returns the gzip Name and Comment for a file name. The header
// only holds Latin-1, so other names are stored path-escaped and flagged in
// the comment; Latin-1 names are stored as is.
func headerName(name string) (string, string) {
	if isLatin1(name) {
		return name, ""
	}
	return url.PathEscape(name), escapedName
}

func decodeHeaderName(name, comment string) (string, error) {
	if comment != escapedName {
		return name, nil
	}
	return url.PathUnescape(name)
}

func isLatin1(s string) bool {
	for _, r := range s {
		if r > 0xff || r == 0 {
			return false
		}
	}
	return true
}

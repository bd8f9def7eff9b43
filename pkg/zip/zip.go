package zip

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// fixedModTime keeps archives of identical assets byte-identical.
var fixedModTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ArchiveAssets writes assets into an in-memory zip archive. Already
// compressed images are stored rather than deflated.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := WriteAssets(buf, assets); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func WriteAssets(out io.Writer, assets []Asset) error {
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestSpeed)
	})
	seen := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		if asset.Filename == "" {
			return fmt.Errorf("zip: empty filename")
		}
		if _, dup := seen[asset.Filename]; dup {
			return fmt.Errorf("zip: duplicate entry %q", asset.Filename)
		}
		seen[asset.Filename] = struct{}{}

		hdr := &zip.FileHeader{Name: asset.Filename, Method: methodFor(asset.MIME), Modified: fixedModTime}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", asset.Filename, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", asset.Filename, err)
		}
	}
	return zw.Close()
}

func methodFor(mime string) uint16 {
	switch mime {
	case "image/png", "image/jpeg", "image/webp", "image/gif":
		return zip.Store
	default:
		return zip.Deflate
	}
}

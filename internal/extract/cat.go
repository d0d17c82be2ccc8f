package extract

import (
	"fmt"
	"os"

	"github.com/lu4p/cat"
)

// catExtractor returns an extractor for formats handled by lu4p/cat, which
// dispatches on the file extension of a path.
func catExtractor(ext string) extractFunc {
	return func(content []byte) (string, error) {
		f, err := os.CreateTemp("", "kessan-*"+ext)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		defer os.Remove(f.Name())
		if _, err := f.Write(content); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		text, err := cat.File(f.Name())
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		return text, nil
	}
}

// Package corpus reads the phrase list the ranking starts from.
package corpus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/duel/internal/domain/model"
	"github.com/okian/duel/pkg/logger"
)

// maxLineBytes bounds a single phrase line.
const maxLineBytes = 64 * 1024

// ErrEmpty is returned when a corpus has no phrases.
var ErrEmpty = errors.New("corpus has no phrases")

// Load reads path, one phrase per line. Blank lines are skipped and repeated
// phrases are kept once. Every item starts at rating.
func Load(ctx context.Context, path string, rating float64) ([]model.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	items, err := Read(f, rating)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Default().Info(ctx, "corpus loaded", logger.String("path", path), logger.Int("phrases", len(items)))
	return items, nil
}

// Read parses phrases from r.
func Read(r io.Reader, rating float64) ([]model.Item, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	seen := make(map[string]struct{})
	var items []model.Item
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		it := model.NewItem(text, rating)
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		items = append(items, it)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	return items, nil
}

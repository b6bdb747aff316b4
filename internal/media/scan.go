package media

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/desertthunder/voxup/internal/models"
	"github.com/desertthunder/voxup/internal/shared"
)

// DefaultExtensions are the audio formats recorded by the mobile client.
var DefaultExtensions = []string{"opus", "ogg", "m4a", "mp3", "wav"}

// Scan walks root and returns every regular file whose extension is in exts, newest name first.
//
// Locator keys are cleaned absolute paths. Hashes are left empty.
func Scan(root string, exts []string) ([]models.Item, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: library root is empty", shared.ErrInvalidConfig)
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library root: %w", err)
	}

	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.TrimPrefix(strings.ToLower(ext), ".")] = struct{}{}
	}

	var items []models.Item
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if _, ok := allowed[ext]; !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		items = append(items, models.Item{
			Key:     filepath.Clean(path),
			Name:    d.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", abs, err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Name == items[j].Name {
			return items[i].Key > items[j].Key
		}
		return items[i].Name > items[j].Name
	})
	return items, nil
}

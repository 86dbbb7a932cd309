package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Storage guarda las fotos en un directorio local servido bajo /uploads/.
type Storage struct{ dir string }

func New(dir string) *Storage { return &Storage{dir: dir} }

func (s *Storage) SaveImage(ctx context.Context, name string, data []byte) (string, error) {
	fn := uuid.New().String()[:8] + "-" + sanitizeFileName(name)
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.dir, fn), data, 0644); err != nil {
		return "", err
	}
	return "/uploads/" + fn, nil
}

// Remove borra el archivo local detrás de una URL pública; las URLs que no
// apuntan a /uploads/ se ignoran.
func (s *Storage) Remove(ctx context.Context, publicURL string) error {
	const prefix = "/uploads/"
	if !strings.HasPrefix(publicURL, prefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(publicURL, prefix))
	if name == "" || name == "." || name == "/" {
		return nil
	}
	return os.Remove(filepath.Join(s.dir, name))
}

func sanitizeFileName(name string) string {
	if name == "" {
		return "foto.jpg"
	}
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, "/", "-")
	mapped := strings.Map(func(r rune) rune {
		if r == '.' || r == '-' || r == '_' || unicode.IsDigit(r) || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return '-'
	}, name)
	for strings.Contains(mapped, "--") {
		mapped = strings.ReplaceAll(mapped, "--", "-")
	}
	mapped = strings.Trim(mapped, "-.")
	if mapped == "" {
		return "foto.jpg"
	}
	return mapped
}

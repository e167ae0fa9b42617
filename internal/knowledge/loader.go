package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var docExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// Document is a source file assigned to a topic.
type Document struct {
	Topic   string
	Source  string
	Content string
	Hash    string
}

// Discover walks dir and returns every document below a topic directory.
// The first path element names the topic: <dir>/<topic>/**/<file>.md.
// Files directly in dir are ignored.
func Discover(dir string) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !docExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 2 {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(content)
		docs = append(docs, Document{
			Topic:   NormalizeTopic(parts[0]),
			Source:  filepath.ToSlash(rel),
			Content: string(content),
			Hash:    hex.EncodeToString(sum[:]),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// NormalizeTopic lowercases a topic and joins words with dashes, so that
// "System Design" and "system-design" match.
func NormalizeTopic(topic string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(topic, "_", " "))), "-")
}

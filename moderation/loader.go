package moderation

import (
	"bufio"
	"chat-relay/errors"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// CensoredData is the merged dictionary and the languages it came from.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads one word list per language: "en.txt", "fr.txt"...
type CensoredLoader struct {
	fsys fs.FS
}

func NewCensoredLoader(fsys fs.FS) *CensoredLoader {
	return &CensoredLoader{fsys: fsys}
}

// LoadAll merges every file of dir, one word per line.
// A nested directory is refused with ErrOnlyCensoredFiles.
func (l *CensoredLoader) LoadAll(dir string) (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fsys, dir)
	if err != nil {
		return nil, err
	}

	data := &CensoredData{}
	for _, entry := range entries {
		if entry.IsDir() {
			return nil, errors.ErrOnlyCensoredFiles
		}
		words, err := l.readWords(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		data.Languages = append(data.Languages, strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
		data.Words = append(data.Words, words...)
	}

	data.Words = lo.Uniq(data.Words)
	if len(data.Words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	sort.Strings(data.Words)
	return data, nil
}

func (l *CensoredLoader) readWords(name string) ([]string, error) {
	f, err := l.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if word := strings.TrimSpace(scanner.Text()); word != "" {
			words = append(words, word)
		}
	}
	return words, scanner.Err()
}

package wordlists

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
)

const (
	CustomPresetID = "6"
	DefaultPreset  = "1"
)

var presetTable = []models.Preset{
	{ID: "1", Name: "top1k", Filename: "top1k.txt"},
	{ID: "2", Name: "top10k", Filename: "top10k.txt"},
	{ID: "3", Name: "top25k", Filename: "top25k.txt"},
	{ID: "4", Name: "top50k", Filename: "top50k.txt"},
	{ID: "5", Name: "top100k", Filename: "top100k.txt"},
	{ID: CustomPresetID, Name: "custom"},
}

// DefaultDir is where preset files are looked up by the package-level Load.
var DefaultDir = "wordlists"

type entry struct {
	once  sync.Once
	ready atomic.Bool
	words []string
	sum   string
	err   error
}

// cache holds loaded lists keyed by absolute path. Entries are immutable
// once their Once has fired; failed loads are evicted so a later call can
// retry.
var cache sync.Map

type Source struct {
	dir    string
	logger *logrus.Logger
}

func NewSource(dir string, logger *logrus.Logger) *Source {
	if logger == nil {
		logger = logrus.New()
	}
	if dir == "" {
		dir = DefaultDir
	}
	return &Source{dir: dir, logger: logger}
}

func Load(presetIDOrPath string) ([]string, error) {
	return NewSource(DefaultDir, nil).Load(presetIDOrPath)
}

// Load returns a copy of the labels for a preset ID, preset name or file
// path. Lines are trimmed; blank lines and '#' comments are skipped;
// duplicate labels are kept.
func (s *Source) Load(presetIDOrPath string) ([]string, error) {
	path, name, err := s.Resolve(presetIDOrPath)
	if err != nil {
		return nil, err
	}

	e, err := loadCached(path)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"wordlist": name,
		"entries":  len(e.words),
		"xxh3":     e.sum,
	}).Debug("wordlist ready")

	out := make([]string, len(e.words))
	copy(out, e.words)
	return out, nil
}

// Resolve maps an identifier to a readable file path and display name.
func (s *Source) Resolve(presetIDOrPath string) (string, string, error) {
	id := strings.TrimSpace(presetIDOrPath)
	if id == "" {
		return "", "", &models.ConfigurationError{Field: "wordlist", Reason: "preset or path is required"}
	}

	if p, ok := lookupPreset(id); ok {
		if p.Filename == "" {
			return "", "", &models.ConfigurationError{Field: "wordlist", Value: id,
				Reason: "custom preset requires a wordlist file path"}
		}
		path := filepath.Join(s.dir, p.Filename)
		if !isReadableFile(path) {
			return "", "", &models.NotFoundError{Kind: "wordlist preset", Name: fmt.Sprintf("%s (%s)", p.Name, path)}
		}
		return path, p.Name, nil
	}

	if isReadableFile(id) {
		return id, filepath.Base(id), nil
	}
	return "", "", &models.NotFoundError{Kind: "wordlist", Name: id}
}

// Presets lists the preset table with availability under the source dir.
// Lists already loaded in this process also report size and checksum.
func (s *Source) Presets() []models.Preset {
	out := make([]models.Preset, 0, len(presetTable))
	for _, p := range presetTable {
		if p.Filename != "" {
			path := filepath.Join(s.dir, p.Filename)
			p.Available = isReadableFile(path)
			if abs, err := filepath.Abs(path); err == nil {
				if v, ok := cache.Load(abs); ok {
					e := v.(*entry)
					if e.ready.Load() && e.err == nil {
						p.Entries = len(e.words)
						p.Checksum = e.sum
					}
				}
			}
		} else {
			p.Available = true
		}
		out = append(out, p)
	}
	return out
}

func lookupPreset(id string) (models.Preset, bool) {
	for _, p := range presetTable {
		if id == p.ID || strings.EqualFold(id, p.Name) {
			return p, true
		}
	}
	return models.Preset{}, false
}

func loadCached(path string) (*entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve wordlist path: %w", err)
	}

	v, _ := cache.LoadOrStore(abs, &entry{})
	e := v.(*entry)
	e.once.Do(func() {
		e.words, e.sum, e.err = readWordlist(abs)
		e.ready.Store(true)
	})
	if e.err != nil {
		cache.CompareAndDelete(abs, e)
		return nil, e.err
	}
	return e, nil
}

func readWordlist(path string) ([]string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", &models.NotFoundError{Kind: "wordlist", Name: path}
	}
	defer f.Close()

	hasher := xxh3.New()
	words, err := parse(io.TeeReader(f, hasher))
	if err != nil {
		return nil, "", fmt.Errorf("failed to scan wordlist %s: %w", path, err)
	}
	return words, fmt.Sprintf("%016x", hasher.Sum64()), nil
}

func parse(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	const maxLine = 1024 * 1024
	sc.Buffer(make([]byte, 64*1024), maxLine)

	words := []string{}
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words = append(words, w)
	}
	return words, sc.Err()
}

func isReadableFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/oddsflow/odds-warehouse/internal/domain/odds"
)

// Store keeps the latest raw provider payload per sport on local disk so a
// failed live fetch can be replayed from the previous run.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(sportKey string) string {
	return filepath.Join(s.dir, sportKey+"_odds.json")
}

// Save overwrites the snapshot for one sport with the raw payload of a
// successful live fetch.
func (s *Store) Save(sportKey string, raw []byte) error {
	sportKey = strings.TrimSpace(sportKey)
	if sportKey == "" {
		return fmt.Errorf("sport key is required")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", s.dir, err)
	}
	if err := os.WriteFile(s.path(sportKey), raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", s.path(sportKey), err)
	}
	return nil
}

// Load reads and decodes the last saved snapshot for one sport.
func (s *Store) Load(sportKey string) ([]odds.RawEvent, error) {
	sportKey = strings.TrimSpace(sportKey)
	if sportKey == "" {
		return nil, fmt.Errorf("sport key is required")
	}

	raw, err := os.ReadFile(s.path(sportKey))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path(sportKey), err)
	}

	var events []odds.RawEvent
	if err := sonic.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path(sportKey), err)
	}
	return events, nil
}

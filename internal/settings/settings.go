// Package settings persists user API keys as a flat JSON document.
//
// The file location is always injected through Store.Path; DefaultPath only
// exists for the command entry points that resolve it from configuration.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"toolbox/internal/fileutil"
	"toolbox/internal/services"
)

// APIKeys holds third-party credentials. Empty keys are omitted on disk.
type APIKeys struct {
	FAL            string `json:"FAL,omitempty"`
	Replicate      string `json:"Replicate,omitempty"`
	HF             string `json:"HF,omitempty"`
	GPT            string `json:"GPT,omitempty"`
	Grok           string `json:"Grok,omitempty"`
	RunPod         string `json:"RunPod,omitempty"`
	RunPodEndpoint string `json:"RunPodEndpoint,omitempty"`
}

// Settings is the whole settings document.
type Settings struct {
	APIKeys APIKeys `json:"api_keys"`
}

// KeyNames lists the recognised key names in file order.
var KeyNames = []string{"FAL", "Replicate", "HF", "GPT", "Grok", "RunPod", "RunPodEndpoint"}

func (k *APIKeys) field(name string) (*string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fal":
		return &k.FAL, true
	case "replicate":
		return &k.Replicate, true
	case "hf":
		return &k.HF, true
	case "gpt":
		return &k.GPT, true
	case "grok":
		return &k.Grok, true
	case "runpod":
		return &k.RunPod, true
	case "runpodendpoint", "runpod_endpoint":
		return &k.RunPodEndpoint, true
	default:
		return nil, false
	}
}

// Get returns the key stored under name (case-insensitive).
func (k APIKeys) Get(name string) (string, bool) {
	ptr, ok := k.field(name)
	if !ok {
		return "", false
	}
	return *ptr, true
}

// Set stores value under name. Unknown names are a validation error.
func (k *APIKeys) Set(name, value string) error {
	ptr, ok := k.field(name)
	if !ok {
		return services.Wrap(services.ErrValidation, "settings", "set key",
			fmt.Sprintf("unknown key %q (expected one of %s)", name, strings.Join(KeyNames, ", ")), nil)
	}
	*ptr = strings.TrimSpace(value)
	return nil
}

// Merge copies every non-empty key of other into k and returns how many keys
// changed.
func (k *APIKeys) Merge(other APIKeys) int {
	changed := 0
	for _, name := range KeyNames {
		incoming, _ := other.Get(name)
		if incoming == "" {
			continue
		}
		ptr, _ := k.field(name)
		if *ptr != incoming {
			*ptr = incoming
			changed++
		}
	}
	return changed
}

// Configured lists the names of keys that hold a value.
func (k APIKeys) Configured() []string {
	var out []string
	for _, name := range KeyNames {
		if v, _ := k.Get(name); v != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

// DefaultPath returns ~/.toolbox/settings.json for the current user.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".toolbox", "settings.json"), nil
}

// Store reads and writes the settings file at Path. Writes are atomic and
// serialized across processes with a lock file next to Path.
type Store struct {
	Path string
}

// NewStore returns a Store for path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

func (s *Store) lock() *flock.Flock {
	return flock.New(s.Path + ".lock")
}

// Load reads the settings. A missing file yields zero Settings and no error.
func (s *Store) Load() (Settings, error) {
	if strings.TrimSpace(s.Path) == "" {
		return Settings{}, services.Wrap(services.ErrConfiguration, "settings", "load", "settings path not set", nil)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("read settings %s: %w", s.Path, err)
	}
	return decode(data, s.Path)
}

func decode(data []byte, path string) (Settings, error) {
	var out Settings
	if len(strings.TrimSpace(string(data))) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return out, nil
}

// withLock runs fn while holding the settings lock file.
func (s *Store) withLock(fn func() error) error {
	if strings.TrimSpace(s.Path) == "" {
		return services.Wrap(services.ErrConfiguration, "settings", "lock", "settings path not set", nil)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	lock := s.lock()
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock settings: %w", err)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

// Save writes settings as indented JSON, creating the parent directory.
func (s *Store) Save(settings Settings) error {
	return s.withLock(func() error { return s.write(settings) })
}

// write expects the caller to hold the lock.
func (s *Store) write(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Update loads the settings, applies fn, and saves the result. The lock is
// held for the whole cycle so concurrent updates never drop each other's keys.
func (s *Store) Update(fn func(*Settings) error) (Settings, error) {
	var current Settings
	err := s.withLock(func() error {
		loaded, err := s.Load()
		if err != nil {
			return err
		}
		if err := fn(&loaded); err != nil {
			return err
		}
		if err := s.write(loaded); err != nil {
			return err
		}
		current = loaded
		return nil
	})
	if err != nil {
		return Settings{}, err
	}
	return current, nil
}

// ExportKeys writes the bare api_keys object to path.
func (s *Store) ExportKeys(path string) error {
	current, err := s.Load()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(current.APIKeys, "", "  ")
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o600)
}

// ImportKeys merges the non-empty keys found in path into the stored
// settings. Both a bare keys object and a full settings document are
// accepted. It returns the number of keys that changed.
func (s *Store) ImportKeys(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read key file: %w", err)
	}
	incoming, err := decodeKeys(data)
	if err != nil {
		return 0, fmt.Errorf("parse key file %s: %w", path, err)
	}
	changed := 0
	_, err = s.Update(func(current *Settings) error {
		changed = current.APIKeys.Merge(incoming)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func decodeKeys(data []byte) (APIKeys, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return APIKeys{}, err
	}
	if raw, ok := doc["api_keys"]; ok {
		data = raw
	}
	var keys APIKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return APIKeys{}, err
	}
	return keys, nil
}

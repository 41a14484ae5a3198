package scoringparams

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Load reads a YAML parameter file and returns the validated params with the raw bytes.
// KnownFields(true) makes a typo in a field name fail loudly instead of
// silently falling back to zero.
func Load(path string) (*Params, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	p, err := Parse(data)
	if err != nil {
		var cfgErr *contracts.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = path
		}
		return nil, data, err
	}

	return p, data, nil
}

// Parse decodes and validates YAML bytes
func Parse(data []byte) (*Params, error) {
	var p Params
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, &contracts.ConfigurationError{Source: "yaml", Problems: []string{err.Error()}}
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}

	return &p, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist.
// The bool reports whether the file was read.
func LoadOrDefault(path string) (*Params, bool, error) {
	p, _, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// Marshal renders params as YAML
func Marshal(p *Params) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save validates p and writes it to path as the current parameter set
func Save(path string, p *Params) error {
	if err := Validate(p); err != nil {
		return err
	}

	data, err := Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create params dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write params: %w", err)
	}
	return os.Rename(tmp, path)
}

// Reset overwrites path with the documented defaults
func Reset(path string) (*Params, error) {
	p := Default()
	if err := Save(path, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Hash returns the SHA256 of the canonical JSON encoding.
// Structs (and sorted map keys) keep the encoding stable.
func Hash(p *Params) (string, error) {
	jsonBytes, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// ShortHash is the first 12 characters of Hash, for display
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

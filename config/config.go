// Package config loads user preferences.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	gemini "github.com/knowfox/comet"
)

// Preferences are the user settings read by the client. Timeouts are in
// seconds as in the preferences file.
type Preferences struct {
	TLSVersion     string `json:"tls_version"`
	ConnectTimeout int    `json:"connection_timeout"`
	ReadTimeout    int    `json:"read_timeout"`
	HomeURL        string `json:"home"`

	// DataDir holds the history and identity database and the keystore.
	// Empty keeps everything in memory.
	DataDir     string `json:"data_dir"`
	DownloadDir string `json:"download_dir"`
}

// Defaults returns the preferences used when nothing is configured.
func Defaults() Preferences {
	return Preferences{
		TLSVersion:     gemini.DefaultTLSVersion,
		ConnectTimeout: int(gemini.DefaultConnectTimeout / time.Second),
		ReadTimeout:    int(gemini.DefaultReadTimeout / time.Second),
		HomeURL:        "gemini://geminiprotocol.net/",
		DownloadDir:    ".",
	}
}

// Load reads a JSON preferences file over the defaults. A missing file
// yields the defaults.
func Load(path string) (Preferences, error) {
	prefs := Defaults()
	if path == "" {
		return prefs, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return prefs, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&prefs); err != nil {
		return Preferences{}, fmt.Errorf("decode config: %w", err)
	}
	return prefs, prefs.Validate()
}

// Validate checks timeouts and the TLS version.
func (p Preferences) Validate() error {
	if p.ConnectTimeout <= 0 {
		return fmt.Errorf("config: connection_timeout must be positive, got %d", p.ConnectTimeout)
	}
	if p.ReadTimeout <= 0 {
		return fmt.Errorf("config: read_timeout must be positive, got %d", p.ReadTimeout)
	}
	if _, err := gemini.ParseTLSVersion(p.TLSVersion); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Dialer returns a transport configured from the preferences.
func (p Preferences) Dialer() *gemini.Dialer {
	return &gemini.Dialer{
		TLSVersion:     p.TLSVersion,
		ConnectTimeout: time.Duration(p.ConnectTimeout) * time.Second,
		ReadTimeout:    time.Duration(p.ReadTimeout) * time.Second,
	}
}

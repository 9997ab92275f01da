package gateway

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/jugalmahida/prodevscore/internal/api"
)

// FileStore persists the credential pair in a mode-0600 TOML file.
// Used by the CLI; the dashboard service keeps credentials in browser
// cookies instead.
type FileStore struct {
	path string
}

type fileTokens struct {
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultCredentialsPath returns the credentials file inside dataDir.
func DefaultCredentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.toml")
}

func (s *FileStore) Tokens() (api.Tokens, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return api.Tokens{}, nil
	}

	var ft fileTokens
	if _, err := toml.DecodeFile(s.path, &ft); err != nil {
		return api.Tokens{}, err
	}
	return api.Tokens{AccessToken: ft.AccessToken, RefreshToken: ft.RefreshToken}, nil
}

func (s *FileStore) Save(t api.Tokens) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(fileTokens{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	})
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

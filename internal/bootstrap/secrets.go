package bootstrap

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"
)

// Credential files kept in the output directory.
const (
	minioPasswordFile    = "minio-root-password"
	grafanaPasswordFile  = "grafana-admin-password"
	longhornPasswordFile = "longhorn-ui-password"
)

func (b *bootstrapper) passwordFile(name string) string {
	return filepath.Join(b.cfg.Paths.OutputDir, "credentials", name)
}

// ensurePassword returns the password stored at path, generating and
// storing one (0600) on first use. Re-runs reuse it so installed releases
// keep working.
func (b *bootstrapper) ensurePassword(path string) (string, error) {
	data, err := afero.ReadFile(b.rc.FS, path)
	switch {
	case err == nil:
		if pw := strings.TrimSpace(string(data)); pw != "" {
			return pw, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	pw, err := generatePassword()
	if err != nil {
		return "", err
	}
	if err := writeFile(b.rc.FS, path, []byte(pw+"\n"), 0o600); err != nil {
		return "", err
	}
	b.rc.Log.Info("generated password", "file", path)
	return pw, nil
}

func generatePassword() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// htpasswd returns an nginx basic-auth line for user.
func htpasswd(user, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return user + ":" + string(hash), nil
}

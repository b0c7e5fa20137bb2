package helm

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/repo"
)

func newSettings(home string) *cli.EnvSettings {
	settings := cli.New()
	if home != "" {
		settings.RepositoryConfig = filepath.Join(home, "repositories.yaml")
		settings.RepositoryCache = filepath.Join(home, "cache")
	}
	return settings
}

// RepositoryConfig returns the path of the repositories file.
func (c *Client) RepositoryConfig() string { return c.settings.RepositoryConfig }

// AddRepository registers url as name and downloads its index. Registering
// the same name again refreshes the entry and the index.
func (c *Client) AddRepository(_ context.Context, name, url string) error {
	entry := &repo.Entry{Name: name, URL: url}

	r, err := repo.NewChartRepository(entry, getter.All(c.settings))
	if err != nil {
		return fmt.Errorf("invalid chart repository %s: %w", url, err)
	}
	r.CachePath = c.settings.RepositoryCache

	indexPath, err := r.DownloadIndexFile()
	if err != nil {
		return fmt.Errorf("failed to download index of repository %s (%s): %w", name, url, err)
	}

	path := c.settings.RepositoryConfig
	f, err := loadRepositoryFile(path)
	if err != nil {
		return err
	}
	f.Update(entry)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create helm home: %w", err)
	}
	if err := f.WriteFile(path, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	c.log.Info("registered chart repository", "name", name, "url", url, "index", indexPath)
	return nil
}

func loadRepositoryFile(path string) (*repo.File, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return repo.NewFile(), nil
	}
	f, err := repo.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return f, nil
}

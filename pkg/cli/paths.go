package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the mixcraft directory structure.
type Paths struct {
	// HomeDir is the user's home directory.
	HomeDir string
}

// NewPaths creates a new Paths instance.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns the base mixcraft directory (~/.mixcraft).
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns the config file path (~/.mixcraft/config.yaml).
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// MusicDir returns the directory downloaded tracks are stored in.
func (p *Paths) MusicDir() string {
	return filepath.Join(p.BaseDir(), "music")
}

// ExportsDir returns the directory final mixes are exported to.
func (p *Paths) ExportsDir() string {
	return filepath.Join(p.BaseDir(), "exports")
}

// TmpDir returns the directory for draft renders.
func (p *Paths) TmpDir() string {
	return filepath.Join(p.BaseDir(), "tmp")
}

// CacheDir returns the analysis cache directory.
func (p *Paths) CacheDir() string {
	return filepath.Join(p.BaseDir(), "cache")
}

// EnsureDirs creates the music, exports, tmp, and cache directories.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.MusicDir(), p.ExportsDir(), p.TmpDir(), p.CacheDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// MusicPath returns a path within the music directory.
func (p *Paths) MusicPath(name string) string {
	return filepath.Join(p.MusicDir(), name)
}

// TmpPath returns a path within the tmp directory.
func (p *Paths) TmpPath(name string) string {
	return filepath.Join(p.TmpDir(), name)
}

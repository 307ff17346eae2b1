// Package patch rewrites constant declarations in configuration source files.
//
// Matching is line-oriented and best effort. A declaration that spans lines or
// uses an unexpected shape is reported as missed and left untouched; with
// Strict enabled a miss is returned as a patch_miss error instead.
package patch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/deepnoodle-ai/deploy"
)

// Options configures a Patcher
type Options struct {
	// Root is the directory relative paths are resolved against
	Root string

	// BackupDir receives a copy of each file before its first modification.
	// It is created on first use.
	BackupDir string

	// Backup enables backups
	Backup bool

	// DryRun computes edits without writing anything
	DryRun bool

	// Strict turns missed constants into errors
	Strict bool

	Logger *slog.Logger
}

// Report describes the outcome of rewriting one file
type Report struct {
	Path         string   `json:"path"`
	Applied      []string `json:"applied,omitempty"`
	Missed       []string `json:"missed,omitempty"`
	RemovedLines int      `json:"removed_lines,omitempty"`
	Replaced     int      `json:"replaced,omitempty"`
	Changed      bool     `json:"changed"`
	Written      bool     `json:"written"`
	Backup       string   `json:"backup,omitempty"`
}

// Patcher applies edits to files under a root directory
type Patcher struct {
	opts   Options
	logger *slog.Logger

	mutex    sync.Mutex
	backedUp map[string]string
}

// New returns a new Patcher
func New(opts Options) *Patcher {
	logger := opts.Logger
	if logger == nil {
		logger = deploy.NewDiscardLogger()
	}
	return &Patcher{
		opts:     opts,
		logger:   logger,
		backedUp: map[string]string{},
	}
}

// Patch sets the named constants in the file at path
func (p *Patcher) Patch(path string, updates map[string]string) (*Report, error) {
	return p.Rewrite(path, SetConstants(updates))
}

// Rewrite applies edits in order to the file at path. The file is read once,
// every edit is computed in memory, and the result is written back atomically
// only if it differs from the original.
func (p *Patcher) Rewrite(path string, edits ...Edit) (*Report, error) {
	fullPath := p.resolve(path)
	report := &Report{Path: path}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && p.opts.DryRun {
			p.logger.Warn("[dry run] file to patch does not exist", "path", path)
			return report, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	original := string(data)
	content := original
	for _, edit := range edits {
		content = edit(content, report)
	}
	report.Changed = content != original

	for _, name := range report.Missed {
		p.logger.Warn("constant declaration not found", "path", path, "constant", name)
	}
	if p.opts.Strict && len(report.Missed) > 0 {
		return report, deploy.NewPatchMiss(path, report.Missed)
	}

	if p.opts.DryRun {
		p.logger.Info("[dry run] would update file", "path", path,
			"applied", report.Applied, "changed", report.Changed)
		return report, nil
	}
	if !report.Changed {
		p.logger.Debug("file already up to date", "path", path)
		return report, nil
	}

	if p.opts.Backup {
		backup, err := p.backup(path, fullPath)
		if err != nil {
			return nil, err
		}
		report.Backup = backup
	}
	if err := deploy.WriteFileAtomic(fullPath, []byte(content), info.Mode().Perm()); err != nil {
		return nil, err
	}
	report.Written = true
	p.logger.Info("updated file", "path", path, "applied", report.Applied)
	return report, nil
}

// Backups returns the backup location of each file copied so far
func (p *Patcher) Backups() map[string]string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	backups := make(map[string]string, len(p.backedUp))
	for k, v := range p.backedUp {
		backups[k] = v
	}
	return backups
}

func (p *Patcher) resolve(path string) string {
	if filepath.IsAbs(path) || p.opts.Root == "" {
		return path
	}
	return filepath.Join(p.opts.Root, path)
}

// backup copies the file into the backup directory. Only the first copy made
// during a Patcher's lifetime is kept, so the backup holds the pre-run content.
func (p *Patcher) backup(path, fullPath string) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if dest, ok := p.backedUp[fullPath]; ok {
		return dest, nil
	}
	if p.opts.BackupDir == "" {
		return "", fmt.Errorf("backup directory not configured")
	}

	rel := path
	if filepath.IsAbs(rel) {
		rel = filepath.Base(rel)
	}
	dest := filepath.Join(p.resolve(p.opts.BackupDir), rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := copyFile(fullPath, dest); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}
	p.backedUp[fullPath] = dest
	p.logger.Debug("backed up file", "path", path, "backup", dest)
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

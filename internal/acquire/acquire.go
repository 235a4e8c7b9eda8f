// Package acquire downloads and extracts resolved package selections
// onto disk, grounded on the original's
// commands/InstallCommand.cpp (resolveRequirements) and adapted from
// internal/install/manager.go's directory-management style.
//
// Idempotence is the whole point: re-running Install against an
// already-populated application directory performs zero network
// requests and zero writes beyond os.Stat calls. Downloads are skipped
// if the destination file already exists; extraction is skipped if the
// lock file already exists next to it.
package acquire

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/zepo-dev/zepo/internal/extract"
	"github.com/zepo-dev/zepo/internal/manifest"
	"github.com/zepo-dev/zepo/internal/paths"
	"github.com/zepo-dev/zepo/internal/progress"
	"github.com/zepo-dev/zepo/internal/registryclient"
	"github.com/zepo-dev/zepo/internal/task"
	"github.com/zepo-dev/zepo/internal/telemetry"
)

// Acquirer downloads and extracts resolved selections.
type Acquirer struct {
	client *registryclient.Client
	paths  *paths.Paths
}

// New creates an Acquirer.
func New(client *registryclient.Client, p *paths.Paths) *Acquirer {
	return &Acquirer{client: client, paths: p}
}

// Install downloads and extracts every selection, one package
// independently of another, fanned out concurrently since nothing
// serializes them. The first failure aborts the remaining work via
// task.WhenAll's short-circuit; packages that already completed are
// left on disk — there is no rollback, matching the source behavior.
func (a *Acquirer) Install(ctx context.Context, selections []manifest.PackageSelect) error {
	fns := make([]func(context.Context) error, len(selections))
	for i, sel := range selections {
		sel := sel
		fns[i] = func(ctx context.Context) error {
			return a.installOne(ctx, sel)
		}
	}
	return task.WhenAll(ctx, 0, fns...)
}

func (a *Acquirer) installOne(ctx context.Context, sel manifest.PackageSelect) error {
	defer telemetry.Default().Span("acquire")()

	if sel.TarballURL == "" {
		return nil // reserved/foreign source selections carry no tarball
	}

	downloadPath := filepath.Join(a.paths.Downloads, filepath.Base(sel.TarballURL))
	if _, err := os.Stat(downloadPath); os.IsNotExist(err) {
		if err := a.download(ctx, sel.TarballURL, downloadPath); err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("acquire: stat %s: %w", downloadPath, err)
	}

	extractPath := a.paths.PackageDir(sel.Name, sel.Selected)
	lockPath := filepath.Join(extractPath, paths.LockFile)
	if _, err := os.Stat(lockPath); err == nil {
		return nil // already extracted
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("acquire: stat %s: %w", lockPath, err)
	}

	if err := extract.Extract(downloadPath, extractPath); err != nil {
		return err
	}
	return createLockFile(lockPath)
}

func (a *Acquirer) download(ctx context.Context, url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("acquire: creating downloads directory: %w", err)
	}
	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("acquire: creating %s: %w", destPath, err)
	}
	defer f.Close()

	var sink io.Writer = f
	if progress.ShouldShowProgress() {
		pw := progress.NewWriter(f, -1, os.Stderr)
		defer pw.Finish()
		sink = pw
	}
	return a.client.DownloadTarball(ctx, url, sink)
}

// createLockFile atomically creates the sentinel file marking a
// package directory as fully extracted: write to a uniquely-named temp
// file in the same directory, then rename over the final name, so a
// concurrent reader never observes a zero-byte partial lock file.
func createLockFile(lockPath string) error {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("acquire: creating package directory: %w", err)
	}
	tmpPath := filepath.Join(filepath.Dir(lockPath), "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, nil, 0o644); err != nil {
		return fmt.Errorf("acquire: writing lock temp file: %w", err)
	}
	if err := os.Rename(tmpPath, lockPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("acquire: renaming lock file: %w", err)
	}
	return nil
}

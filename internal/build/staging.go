package build

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/wikigen/internal/logfields"
)

// beginStaging creates an isolated staging directory for atomic build
// output, as a sibling of the output dir (<output>_stage). Leftovers from a
// crashed build are removed first.
func (b *Builder) beginStaging() (string, error) {
	stage := b.cfg.Content.OutputDir + "_stage"
	if err := os.RemoveAll(stage); err != nil {
		return "", fmt.Errorf("clear stale staging dir: %w", err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return "", err
	}
	slog.Debug("Initialized staging directory", "staging", stage, "final", b.cfg.Content.OutputDir)
	return stage, nil
}

// finalizeStaging atomically promotes the staging directory to the final
// output location:
//  1. Move existing outputDir (if any) to outputDir.prev.
//  2. Rename staging -> outputDir.
//  3. Remove the previous backup asynchronously, best effort.
func (b *Builder) finalizeStaging(stageDir string) error {
	if stageDir == "" {
		return fmt.Errorf("no staging directory initialized")
	}
	if _, err := os.Stat(stageDir); err != nil {
		return fmt.Errorf("staging directory missing: %w", err)
	}

	outputDir := b.cfg.Content.OutputDir
	prev := outputDir + ".prev"
	if _, err := os.Stat(prev); err == nil {
		// A backup may linger from an interrupted build; retry briefly in
		// case something still holds files open.
		for i := 0; i < 3; i++ {
			if err := os.RemoveAll(prev); err == nil {
				break
			}
			if i < 2 {
				time.Sleep(100 * time.Millisecond)
			}
		}
		if _, err := os.Stat(prev); err == nil {
			return fmt.Errorf("previous backup %s cannot be removed", prev)
		}
	}
	if _, err := os.Stat(outputDir); err == nil {
		if err := os.Rename(outputDir, prev); err != nil {
			return fmt.Errorf("backup existing output: %w", err)
		}
	}
	if err := os.Rename(stageDir, outputDir); err != nil {
		return fmt.Errorf("promote staging: %w", err)
	}
	go func(p string) {
		if err := os.RemoveAll(p); err != nil {
			slog.Warn("Failed to remove previous backup", logfields.Path(p), logfields.Error(err))
		}
	}(prev)
	slog.Info("Promoted staging directory", logfields.Output(outputDir))
	return nil
}

// abortStaging removes the staging directory after a failed build to avoid
// orphaned temp dirs.
func (b *Builder) abortStaging(stageDir string) {
	if stageDir == "" {
		return
	}
	if err := os.RemoveAll(stageDir); err != nil {
		slog.Warn("Failed to remove staging directory after abort", "staging", stageDir, logfields.Error(err))
	} else {
		slog.Debug("Removed staging directory after abort", "staging", stageDir)
	}
}

// copyFile copies a previously rendered output file into the staging tree.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", dst, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return out.Close()
}

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	tserrors "github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/registry"
	"github.com/conneroisu/tessera/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild pages when templates or features change",
	Long: `Build once, then watch the template root and the features file and rebuild
after every burst of changes. A change to the features file reloads variables
and functions before the rebuild. Files written by the build itself are
ignored.

Examples:
  tessera watch                   # Watch with the configured settings
  tessera watch --output public   # Rebuild into a specific directory`,
	PreRunE: SetViperBindings(map[string]string{
		"output":   "build.output",
		"debounce": "watch.debounce",
	}),
	RunE: runWatch,
}

var watchVars *VarsFlags

// editorTempExtensions are swap and backup files editors write next to the
// file being edited.
var editorTempExtensions = []string{".swp", ".swx", ".swo", ".tmp", ".bak"}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchVars = addVarsFlags(watchCmd)
	watchCmd.Flags().StringP("output", "o", "", "Output directory")
	watchCmd.Flags().Duration("debounce", 0, "Delay grouping rapid changes (default from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	vars, err := watchVars.Parse()
	if err != nil {
		return err
	}
	opts := s.config.CompileOptions()
	opts.Vars = vars

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	fileWatcher, err := newSiteWatcher(s, opts.OutputDir)
	if err != nil {
		return err
	}
	defer fileWatcher.Stop()

	go logDependencies(ctx, s, s.engine.IncludedFiles())

	out := cmd.OutOrStdout()
	rebuild := func(ctx context.Context) {
		manifest, err := s.engine.Compile(ctx, opts)
		if manifest != nil {
			_ = writeManifest(out, manifest, "text")
		}
		if err != nil {
			s.logger.Warn(ctx, err, "build finished with errors")
		}
	}

	featuresFile := s.config.FeaturesPath()
	fileWatcher.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		reload := false
		for _, event := range events {
			s.logger.Debug(ctx, "file changed", "path", event.Path, "type", event.Type.String())
			if featuresFile != "" && event.Path == featuresFile {
				reload = true
			}
		}
		fmt.Fprintf(out, "📁 %d file(s) changed\n", len(events))

		if reload {
			if err := s.engine.ReloadFeatures(ctx); err != nil {
				return fmt.Errorf("features not reloaded: %w", tserrors.ExtractCause(err))
			}
		}
		s.engine.RecentWrites().Prune()
		rebuild(ctx)
		return nil
	})

	rebuild(ctx)

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	fmt.Fprintf(out, "👀 Watching %s (press Ctrl+C to stop)\n", s.engine.Root())

	<-ctx.Done()
	fmt.Fprintln(out, "🛑 Stopping watcher")
	return nil
}

// newSiteWatcher watches the template root and the features file. Output
// written by the engine and ignored directories never trigger a rebuild.
func newSiteWatcher(s *session, outputDir string) (*watcher.FileWatcher, error) {
	fileWatcher, err := watcher.NewFileWatcher(s.config.Watch.Debounce, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fileWatcher.IgnoreDirs(s.config.Watch.Ignore...)
	fileWatcher.AddFilter(watcher.IgnoreFilter(s.config.Watch.Ignore...))
	fileWatcher.AddFilter(watcher.Not(watcher.WithinDir(outputDir)))
	fileWatcher.AddFilter(watcher.RecentWriteFilter(s.engine.RecentWrites()))
	fileWatcher.AddFilter(watcher.Not(watcher.ExtensionFilter(editorTempExtensions...)))

	relevant := watcher.WithinDir(s.engine.Root())
	featuresFile := s.config.FeaturesPath()
	if featuresFile != "" {
		relevant = watcher.AnyOf(relevant, watcher.SameFile(featuresFile))
	}
	fileWatcher.AddFilter(relevant)

	if err := fileWatcher.AddRecursive(s.engine.Root()); err != nil {
		fileWatcher.Stop()
		return nil, fmt.Errorf("failed to watch %s: %w", s.engine.Root(), err)
	}
	if featuresFile != "" {
		// The directory is watched so editors that replace the file are seen.
		if err := fileWatcher.AddPath(filepath.Dir(featuresFile)); err != nil {
			s.logger.Warn(context.Background(), err, "features file not watched", "file", featuresFile)
		}
	}

	return fileWatcher, nil
}

func logDependencies(ctx context.Context, s *session, included *registry.IncludedFiles) {
	events := included.Watch()
	defer included.UnWatch(events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Type == registry.EventTypeAdded {
				s.logger.Debug(ctx, "dependency recorded", "path", event.Path)
			}
		}
	}
}

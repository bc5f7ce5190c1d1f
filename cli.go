package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deckforge/coreup/internal/buildbot"
	"github.com/deckforge/coreup/internal/detect"
	"github.com/deckforge/coreup/internal/settings"
	"github.com/deckforge/coreup/internal/updater"
)

var (
	verboseFlag       bool
	quietFlag         bool
	pathFlag          string
	requireBackupFlag bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coreup",
		Short:         "Update RetroArch cores on a Steam Deck",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
			switch {
			case verboseFlag:
				log.SetLevel(log.DebugLevel)
			case quietFlag:
				log.SetLevel(log.WarnLevel)
			default:
				log.SetLevel(log.InfoLevel)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "only log warnings and errors")

	root.AddCommand(newListCmd())
	root.AddCommand(newDetectCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newUpdateCmd())
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available core pack versions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := buildbot.NewClient("", nil)
			versions := client.AvailableVersions()
			if len(versions) == 0 {
				fmt.Println("No versions available.")
				return nil
			}
			for _, v := range versions {
				fmt.Println(v)
			}
			return nil
		},
	}
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Detect RetroArch installations",
		RunE: func(cmd *cobra.Command, args []string) error {
			detector, err := detect.NewDetector()
			if err != nil {
				return err
			}

			installations := detector.Installations()
			if len(installations) == 0 {
				fmt.Println("No RetroArch installations found.")
			}
			for _, inst := range installations {
				writable := "read-only"
				if detect.Writable(inst.Path) {
					writable = "writable"
				}
				fmt.Printf("%-16s %s (%s)\n", inst.DisplayName, inst.Path, writable)
			}

			if detect.HaveSevenZip() {
				fmt.Println("7z: found")
			} else {
				fmt.Println("7z: not found (built-in extractor will be used)")
			}
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <version>",
		Short: "Check whether a version is downloadable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := buildbot.NewClient("", nil)
			info := client.Info(buildbot.ParseVersion(args[0]))
			if !info.Available {
				return fmt.Errorf("version %s is not available", args[0])
			}
			if info.Size > 0 {
				fmt.Printf("%s: available (%s)\n", info.Version, humanBytes(info.Size))
			} else {
				fmt.Printf("%s: available\n", info.Version)
			}
			return nil
		},
	}
}

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [version]",
		Short: "Download and install a core pack version (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runUpdate,
	}
	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "cores directory to update")
	cmd.Flags().BoolVar(&requireBackupFlag, "require-backup", false, "abort if the pre-update backup cannot be taken")
	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *settings.Store
	if p, err := settings.DefaultPath(); err == nil {
		store = settings.Open(p)
	} else {
		store = settings.Open("")
	}

	client := buildbot.NewClient("", nil)

	version, err := resolveVersion(client, args)
	if err != nil {
		return err
	}

	target, err := resolveTarget(store)
	if err != nil {
		return err
	}
	if !detect.Writable(target) {
		return fmt.Errorf("cores directory %s is not writable", target)
	}

	fmt.Printf("Updating cores in %s to %s\n", target, version)

	session, err := updater.Start(ctx, updater.Options{
		Version:       version.String(),
		TargetDir:     target,
		ArchiveURL:    client.DownloadURL(version),
		RequireBackup: requireBackupFlag,
	})
	if err != nil {
		return err
	}

	finished := false
	succeeded := false
	for event := range session.Events() {
		switch event.Kind {
		case updater.EventStatus:
			fmt.Printf("  %s\n", event.Status)
		case updater.EventProgress:
			fmt.Printf("  %d%%\n", event.Progress)
		case updater.EventError:
			fmt.Fprintf(os.Stderr, "error: %s\n", event.Err)
		case updater.EventFinished:
			finished = true
			succeeded = event.Success
		}
	}

	if !finished {
		return errors.New("update cancelled")
	}
	if !succeeded {
		return errors.New("update failed")
	}

	if err := store.Set(settings.KeyLastVersion, version.String()); err != nil {
		log.WithError(err).Warn("could not persist last version")
	}
	if err := store.Set(settings.KeyLastPath, target); err != nil {
		log.WithError(err).Warn("could not persist last path")
	}
	return nil
}

func resolveVersion(client *buildbot.Client, args []string) (buildbot.Version, error) {
	if len(args) == 1 {
		v := buildbot.ParseVersion(args[0])
		if !v.IsValid() {
			return buildbot.Version{}, fmt.Errorf("invalid version %q (expected a.b.c)", args[0])
		}
		if !client.Validate(v) {
			return buildbot.Version{}, fmt.Errorf("version %s is not available", v)
		}
		return v, nil
	}

	latest, ok := client.Latest()
	if !ok {
		return buildbot.Version{}, errors.New("no versions available")
	}
	return latest, nil
}

// resolveTarget picks the cores directory: the --path flag, then the last
// used path, then the detector's recommendation.
func resolveTarget(store *settings.Store) (string, error) {
	if pathFlag != "" {
		return pathFlag, nil
	}
	if last := store.Get(settings.KeyLastPath, ""); last != "" {
		return last, nil
	}

	detector, err := detect.NewDetector()
	if err != nil {
		return "", err
	}
	recommended, ok := detector.Recommended()
	if !ok {
		return "", errors.New("no RetroArch installation found; pass --path")
	}
	return recommended.Path, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}

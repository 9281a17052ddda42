package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomhrr/fsmu/internal/config"
	"github.com/tomhrr/fsmu/internal/search"
	"github.com/tomhrr/fsmu/pkg/vfs"
)

var rootCmd = &cobra.Command{
	Use:   "fsmu [mountpoint]",
	Short: "Mount saved mail searches as a filesystem",
	Long: `fsmu exposes saved mail-search queries as maildir-style
directories: each query gets a directory of cur/ and new/, kept in
sync with the results of re-running the search against mu.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMount,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "not read; config always comes from $XDG_CONFIG_HOME/fsmu/config.yaml or ~/.config/fsmu/config.yaml")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable debug logging")

	rootCmd.Flags().String("backing-dir", "", "directory fsmu owns for backing state (required unless backing_dir is set in config)")
	rootCmd.Flags().String("mu", "", "path to the mu binary")
	rootCmd.Flags().String("muhome", "", "mu home directory, passed as --muhome to mu")
	rootCmd.Flags().Duration("refresh-timeout", 0, "minimum age before a query is refreshed again")
	rootCmd.Flags().Bool("delete-remove", false, "allow unlink to delete the underlying message; without it, unlink is refused")
	rootCmd.Flags().Bool("enable-indexing", false, "run \"mu index\" before every search")
	rootCmd.Flags().Bool("compat-mu-1024", true, "treat mu's exit code 1024 as success")
}

func runMount(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	applyFlagOverrides(cmd, cfg)

	mountpoint := cfg.MountPoint
	if len(args) > 0 {
		mountpoint = args[0]
	}
	if mountpoint == "" {
		return fmt.Errorf("mountpoint required: fsmu /path/to/mount")
	}
	if cfg.BackingDir == "" {
		return fmt.Errorf("backing directory required: --backing-dir or backing_dir in config")
	}

	if err := os.MkdirAll(mountpoint, 0755); err != nil {
		return fmt.Errorf("failed to create mountpoint: %w", err)
	}

	fsys, err := vfs.New(vfs.Options{
		BackingDir: cfg.BackingDir,
		Search: search.Options{
			MuPath:         cfg.Mu,
			MuHome:         cfg.MuHome,
			EnableIndexing: cfg.EnableIndexing,
			Compat1024:     cfg.Compat1024,
		},
		RefreshTimeout: cfg.RefreshTimeout,
		AllowDelete:    cfg.DeleteRemove,
		Debug:          cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to build filesystem: %w", err)
	}

	fmt.Printf("Mounting fsmu at %s\n", mountpoint)

	server, err := vfs.Mount(mountpoint, fsys, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to mount: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nUnmounting...")
		server.Unmount()
	}()

	fmt.Println("Filesystem mounted. Press Ctrl+C to unmount.")
	server.Wait()
	return nil
}

// applyFlagOverrides lets explicitly-set flags take precedence over
// whatever config.Load already resolved from file and environment.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("backing-dir") {
		cfg.BackingDir, _ = flags.GetString("backing-dir")
	}
	if flags.Changed("mu") {
		cfg.Mu, _ = flags.GetString("mu")
	}
	if flags.Changed("muhome") {
		cfg.MuHome, _ = flags.GetString("muhome")
	}
	if flags.Changed("refresh-timeout") {
		cfg.RefreshTimeout, _ = flags.GetDuration("refresh-timeout")
	}
	if flags.Changed("delete-remove") {
		cfg.DeleteRemove, _ = flags.GetBool("delete-remove")
	}
	if flags.Changed("enable-indexing") {
		cfg.EnableIndexing, _ = flags.GetBool("enable-indexing")
	}
	if flags.Changed("compat-mu-1024") {
		cfg.Compat1024, _ = flags.GetBool("compat-mu-1024")
	}
	if d, _ := cmd.Root().PersistentFlags().GetBool("debug"); d {
		cfg.Debug = true
	}
}

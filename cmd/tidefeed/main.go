package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tailrun "github.com/tidefeed/tidefeed/internal/cmd/tail"
	cfgpkg "github.com/tidefeed/tidefeed/internal/config"
	"github.com/tidefeed/tidefeed/internal/runtime"
	pebblestore "github.com/tidefeed/tidefeed/internal/storage/pebble"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tidefeed",
		Short: "Tidefeed change feed CLI",
		Long:  "Tidefeed reads a blob storage change feed in order. This CLI tails feeds and manages their checkpoints.",
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (JSON or YAML)")

	rootCmd.AddCommand(newTailCmd())
	rootCmd.AddCommand(newCursorCmd())
	rootCmd.AddCommand(newCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers file, env, and flag overrides in that order.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)

	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("feed"); v != "" {
		cfg.Feed.ID = v
	}
	if v, _ := cmd.Flags().GetString("start-time"); v != "" {
		cfg.Feed.StartTime = v
	}
	if v, _ := cmd.Flags().GetString("container"); v != "" {
		cfg.Feed.Container = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	return cfg, nil
}

func feedFlags(cmd *cobra.Command) {
	cmd.Flags().String("data-dir", "", "Cursor database directory (default: OS-specific data directory)")
	cmd.Flags().String("feed", "", "Feed identity keying the checkpoint")
	cmd.Flags().String("start-time", "", "RFC 3339 start position for a fresh feed")
	cmd.Flags().String("container", "", "Only deliver events for this container")
	cmd.Flags().String("log-level", os.Getenv("TIDEFEED_LOG_LEVEL"), "Log level: debug|info|warn|error")
	cmd.Flags().String("log-format", os.Getenv("TIDEFEED_LOG_FORMAT"), "Log format: text|json")
}

func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream the change feed from the last checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			mode := pebblestore.FsyncModeAlways
			switch fsyncMode {
			case "always", "":
				mode = pebblestore.FsyncModeAlways
			case "never":
				mode = pebblestore.FsyncModeNever
			default:
				return fmt.Errorf("invalid --fsync; use always|never")
			}
			once, _ := cmd.Flags().GetBool("once")
			asJSON, _ := cmd.Flags().GetBool("json")
			return tailrun.Run(context.Background(), tailrun.Options{
				Config: cfg,
				Fsync:  mode,
				Once:   once,
				JSON:   asJSON,
			})
		},
	}
	feedFlags(cmd)
	cmd.Flags().String("fsync", "always", "Checkpoint fsync mode: always|never")
	cmd.Flags().Bool("once", false, "Exit after catching up instead of live-tailing")
	cmd.Flags().Bool("json", false, "Print events as JSON lines")
	return cmd
}

func newCursorCmd() *cobra.Command {
	cursorCmd := &cobra.Command{Use: "cursor", Short: "Checkpoint operations"}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved checkpoint for a feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cfg, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			cp, ok, err := rt.CursorStore().Load(cmd.Context(), cfg.Feed.ID)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("feed %q has no checkpoint\n", cfg.Feed.ID)
				return nil
			}
			b, err := json.MarshalIndent(cp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			fmt.Println("token:", cp.Token())
			return nil
		},
	}
	feedFlags(showCmd)
	cursorCmd.AddCommand(showCmd)

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the checkpoint so the feed restarts from the beginning",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cfg, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.CursorStore().Reset(cmd.Context(), cfg.Feed.ID); err != nil {
				return err
			}
			fmt.Printf("checkpoint for feed %q removed\n", cfg.Feed.ID)
			return nil
		},
	}
	feedFlags(resetCmd)
	cursorCmd.AddCommand(resetCmd)

	return cursorCmd
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe the cursor database and the blob backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.CheckHealth(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	feedFlags(cmd)
	return cmd
}

func openRuntime(cmd *cobra.Command) (*runtime.Runtime, cfgpkg.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfgpkg.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfgpkg.Config{}, err
	}
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		return nil, cfgpkg.Config{}, err
	}
	return rt, cfg, nil
}

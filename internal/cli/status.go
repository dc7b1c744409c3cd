package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ninjaos/autopilot/internal/config"
	"github.com/ninjaos/autopilot/internal/store"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("Autopilot Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state: config, store, queue depth, scheduler runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		printHeader("Autopilot Status")
		fmt.Printf("Version: %s\n", version)

		if configPath, err := config.ConfigPath(); err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:  found (" + configPath + ")")
			} else {
				fmt.Println("Config:  not found, using defaults (" + configPath + ")")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		st, err := store.New(cfg.Paths.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		fmt.Println("Store:   " + cfg.Paths.DBPath)

		depth, err := st.SyncQueueDepth()
		if err != nil {
			return err
		}
		fmt.Printf("Sync queue: pending=%d retry=%d processing=%d completed=%d failed=%d\n",
			depth[store.SyncPending], depth[store.SyncRetry], depth[store.SyncProcessing],
			depth[store.SyncCompleted], depth[store.SyncFailed])

		pending, err := st.ListActions(store.ActionProposed, 100)
		if err != nil {
			return err
		}
		fmt.Printf("Actions awaiting review: %d\n", len(pending))

		runs, err := st.ListSchedulerRuns()
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("Job %-20s %s x%d (last %s)\n",
				r.JobName, r.LastStatus, r.RunCount, r.LastRunAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ninjaos/autopilot/internal/config"
	"github.com/ninjaos/autopilot/internal/crmsync"
	"github.com/ninjaos/autopilot/internal/store"
)

var syncBatch int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Inspect and drain the CRM sync queue",
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Drain due queue items once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		st, err := store.New(cfg.Paths.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		worker := crmsync.NewWorker(st, cfg.Sync)
		n, err := worker.ProcessQueue(cmd.Context(), syncBatch)
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d item(s).\n", n)
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and integration health",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		depth, err := st.SyncQueueDepth()
		if err != nil {
			return err
		}
		fmt.Printf("Queue: pending=%d retry=%d processing=%d completed=%d failed=%d\n",
			depth[store.SyncPending], depth[store.SyncRetry], depth[store.SyncProcessing],
			depth[store.SyncCompleted], depth[store.SyncFailed])

		integrations, err := st.ListActiveIntegrations()
		if err != nil {
			return err
		}
		if len(integrations) == 0 {
			fmt.Println("No active integrations.")
			return nil
		}
		for _, in := range integrations {
			last := "never"
			if in.LastSyncAt != nil {
				last = in.LastSyncAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  provider=%s status=%s last=%s\n",
				in.IntegrationID, in.Provider, in.LastSyncStatus, last)
			if in.LastSyncError != "" {
				fmt.Printf("    %s\n", in.LastSyncError)
			}
		}
		return nil
	},
}

func init() {
	syncRunCmd.Flags().IntVar(&syncBatch, "batch", 10, "Maximum items to claim")
	syncCmd.AddCommand(syncRunCmd, syncStatusCmd)
}

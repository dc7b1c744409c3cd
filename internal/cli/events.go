package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	eventsLimit int
	eventsType  string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent domain events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		events, err := st.ListRecentEvents(eventsType, eventsLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events.")
			return nil
		}
		for _, e := range events {
			fmt.Printf("%s  %-24s %s %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.EventType, e.SourceEntityID, e.Payload)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "Maximum rows")
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "Only show events of this type")
}

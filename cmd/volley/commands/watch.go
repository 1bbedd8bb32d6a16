package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kesper43/volley/internal/watch"
	"github.com/kesper43/volley/pkg/ledger"
)

var watchParty string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow one party's event feed live",
	Long: `Follow one party's event feed.

Prints each contract creation and archival the party observes, as it
happens. The feed is scoped from now; past events are not replayed.

Examples:
  # Follow Bob's feed while a rally runs in another terminal
  volley watch --port 6379 --party Bob`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchParty, "party", "p", "", "Party whose feed to follow (required)")
	watchCmd.MarkFlagRequired("party")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	// Stop streaming on Ctrl+C.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	return watch.StreamEvents(ctx, client, ledger.Party(watchParty), os.Stdout)
}

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/kesper43/volley/internal/config"
	"github.com/kesper43/volley/internal/printer"
	"github.com/kesper43/volley/pkg/ledger"
)

var (
	version string
	commit  string
	date    string
)

var (
	flagHost       string
	flagPort       int
	flagConfigFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "volley",
	Short: "Volley - a reactive ping-pong rally over a shared ledger",
	Long: `Volley runs a ping-pong exchange between two parties on a shared,
append-only ledger. Each party watches its own event feed and answers every
Ping or Pong directed at it with the complement, counter incremented,
producing an unbroken alternating chain of contracts.

Typical session:
  volley deploy --port 6379          # upload the PingPong package
  volley rally  --port 6379          # run the rally
  volley watch  --port 6379 -p Bob   # follow one party's feed live`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "localhost", "Ledger host")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "Ledger port (required)")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Path to volley.yml (defaults apply if absent)")
	rootCmd.MarkPersistentFlagRequired("port")
}

// connect loads the config file and opens a verified ledger client.
// Connection failure is fatal for every command, so it is reported here once.
func connect(ctx context.Context) (*config.Config, *ledger.Client, error) {
	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		return nil, nil, err
	}

	addr := fmt.Sprintf("%s:%d", flagHost, flagPort)
	client, err := ledger.NewClient(&redis.Options{Addr: addr}, cfg.Ledger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create ledger client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, nil, printer.Error(
			fmt.Sprintf("cannot reach ledger at %s", addr),
			fmt.Sprintf("Connection error: %v", err),
			[]string{"Check that the ledger is running and --host/--port are correct."},
		)
	}

	return cfg, client, nil
}

package commands

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kesper43/volley/internal/printer"
	"github.com/kesper43/volley/internal/rally"
	"github.com/kesper43/volley/internal/resolver"
	"github.com/kesper43/volley/pkg/ledger"
)

var (
	rallyContracts int
	rallyRunFor    string
)

var rallyCmd = &cobra.Command{
	Use:   "rally",
	Short: "Run the ping-pong rally between the configured parties",
	Long: `Run the ping-pong rally.

Connects to the ledger, locates the package defining the PingPong module,
starts one reactive processor per party, then seeds the configured number of
initial Ping contracts in each direction. The processors answer every
incoming contract with its complement until the run duration elapses.

Examples:
  # Rally with defaults (Alice and Bob, 10 contracts each, 5 seconds)
  volley rally --port 6379

  # Short demonstration run
  volley rally --port 6379 --contracts 3 --run-for 2s`,
	RunE: runRally,
}

func init() {
	rallyCmd.Flags().IntVarP(&rallyContracts, "contracts", "c", -1, "Initial contracts per party (overrides config)")
	rallyCmd.Flags().StringVar(&rallyRunFor, "run-for", "", "Run duration before exiting (overrides config)")
	rootCmd.AddCommand(rallyCmd)
}

func runRally(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if rallyContracts >= 0 {
		cfg.InitialContracts = rallyContracts
	}
	if rallyRunFor != "" {
		cfg.RunFor = rallyRunFor
	}
	runFor, err := cfg.RunDuration()
	if err != nil {
		return err
	}

	// Locate the package defining the PingPong module. The package id is a
	// content hash that changes with every model change, so it is detected
	// rather than configured.
	printer.Step("Resolving module %s...\n", cfg.Module)
	packageID, err := resolver.FindModule(ctx, client, cfg.ModuleName())
	if err != nil {
		if resolver.IsModuleNotFound(err) {
			return printer.Error(
				err.Error(),
				"The rally needs the package defining Ping and Pong on the ledger.",
				[]string{"Upload it first:\n  volley deploy --port " + cmd.Flags().Lookup("port").Value.String()},
			)
		}
		return err
	}
	printer.Info("Module %s found in package %s\n", cfg.Module, shortID(packageID))

	module := ledger.TemplateID{PackageID: packageID, Module: cfg.Module}
	alice := ledger.Party(cfg.Parties[0])
	bob := ledger.Party(cfg.Parties[1])

	// Start the processors before seeding so no creation event is missed;
	// the feed is scoped from "now" and does not replay.
	processorCtx, cancelProcessors := context.WithCancel(ctx)
	defer cancelProcessors()

	var wg sync.WaitGroup
	for _, party := range []ledger.Party{alice, bob} {
		party := party
		processor := rally.NewProcessor(client, party, cfg.ApplicationID, module)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := processor.Run(processorCtx); err != nil {
				printer.Printf("processor %s stopped: %v\n", party, err)
			}
		}()
	}

	// Give the subscriptions time to establish before publishing.
	time.Sleep(100 * time.Millisecond)

	printer.Step("Seeding %d contract(s) in each direction...\n", cfg.InitialContracts)
	if err := rally.SeedContracts(ctx, client, cfg.ApplicationID, module, alice, bob, cfg.InitialContracts); err != nil {
		return err
	}
	if err := rally.SeedContracts(ctx, client, cfg.ApplicationID, module, bob, alice, cfg.InitialContracts); err != nil {
		return err
	}

	// Let the rally play out for the configured duration, or stop early on
	// Ctrl+C. Either way the process exits cleanly.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-time.After(runFor):
	case sig := <-sigChan:
		printer.Info("Received signal: %v\n", sig)
	}

	cancelProcessors()
	wg.Wait()

	contracts, err := client.ListContracts(ctx)
	if err != nil {
		return err
	}
	printer.Success("Rally finished: ledger holds %d contract(s)\n", len(contracts))

	return nil
}

func shortID(id ledger.PackageID) string {
	s := string(id)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

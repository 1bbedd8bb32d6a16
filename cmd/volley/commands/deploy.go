package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kesper43/volley/internal/archive"
	"github.com/kesper43/volley/internal/printer"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build the PingPong package and upload it to the ledger",
	Long: `Build the package archive defining the configured module and upload
it to the ledger.

The package id is the content hash of the payload, so deploying the same
module twice is a no-op that reports the same id.

Examples:
  volley deploy --port 6379
  volley deploy --port 6379 --config volley.yml`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	builder := archive.NewBuilder()
	if err := builder.AddModule(cfg.ModuleName()...); err != nil {
		return err
	}

	payload, err := archive.Encode(builder.Archive())
	if err != nil {
		return err
	}

	packageID, err := client.UploadPackage(ctx, payload)
	if err != nil {
		return err
	}

	printer.Success("Package uploaded: %s\n", packageID)
	printer.Info("\nNext steps:\n")
	printer.Info("  • Run the rally: volley rally --port %d\n", flagPort)
	printer.Info("  • Inspect packages: volley packages --port %d\n", flagPort)

	return nil
}

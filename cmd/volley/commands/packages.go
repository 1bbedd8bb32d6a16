package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kesper43/volley/internal/archive"
	"github.com/kesper43/volley/internal/printer"
)

var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "List ledger packages with their decoded module names",
	Long: `List every package uploaded to the ledger.

For each package id the payload is fetched and its module table decoded, so
the output shows which package defines which modules. Payloads that fail to
decode are reported but do not abort the listing.`,
	RunE: runPackages,
}

func init() {
	rootCmd.AddCommand(packagesCmd)
}

func runPackages(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	packageIDs, err := client.ListPackages(ctx)
	if err != nil {
		return err
	}

	if len(packageIDs) == 0 {
		printer.Info("No packages on the ledger. Upload one with: volley deploy --port %d\n", flagPort)
		return nil
	}

	for _, packageID := range packageIDs {
		payload, err := client.GetPackage(ctx, packageID)
		if err != nil {
			printer.Printf("%s  (unreadable: %v)\n", packageID, err)
			continue
		}

		names, err := decodeModuleNames(payload)
		if err != nil {
			printer.Printf("%s  (undecodable: %v)\n", packageID, err)
			continue
		}

		printer.Printf("%s  modules: %s\n", packageID, strings.Join(names, ", "))
	}

	return nil
}

func decodeModuleNames(payload []byte) ([]string, error) {
	a, err := archive.Decode(payload)
	if err != nil {
		return nil, err
	}

	moduleNames, err := a.ModuleNames()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(moduleNames))
	for i, segments := range moduleNames {
		names[i] = strings.Join(segments, ".")
	}
	return names, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"datum/internal/dms"
	"datum/internal/repository/postgres"
	"datum/internal/service"
)

func orphansCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List purchases whose document is missing from OpenKM",
		Long: `Compare every recorded document path with OpenKM and list the purchases
whose blob is gone. Nothing is modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			store := dms.NewOpenKMClient(dms.Config{
				BaseURL:  e.cfg.OpenKMURL,
				Username: e.cfg.OpenKMUsername,
				Password: e.cfg.OpenKMPassword,
				BasePath: e.cfg.OpenKMBasePath,
				Timeout:  e.cfg.UpstreamTimeout,
			}, e.logger)
			auditor := service.NewDocumentAuditor(postgres.NewPurchaseRepository(e.repoConfig()), store, e.logger)

			dangling, err := auditor.FindDangling(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(dangling)
			}
			if len(dangling) == 0 {
				fmt.Fprintln(out, "no dangling documents")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PURCHASE\tOWNER\tFOLDER\tPATH")
			for _, d := range dangling {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", d.PurchaseID, d.OwnerUserID, d.FolderID, d.Path)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

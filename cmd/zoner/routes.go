package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/server"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List stored driver routes for a day",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		date := time.Now()
		if raw, _ := cmd.Flags().GetString("date"); raw != "" {
			parsed, err := time.Parse(database.RouteDateLayout, raw)
			if err != nil {
				return eris.Wrapf(err, "invalid --date %q", raw)
			}
			date = parsed
		}

		db, err := server.OpenStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer db.Close() //nolint:errcheck

		routes, err := db.Routes().ListByDate(ctx, date)
		if err != nil {
			return eris.Wrap(err, "routes list")
		}
		if len(routes) == 0 {
			fmt.Fprintln(os.Stderr, "No routes found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDRIVER\tSTOPS\tKM\tFIRST STOP")
		for _, r := range routes {
			first := ""
			if len(r.Points) > 0 {
				first = r.Points[0].Address
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%s\n", r.ID, r.DriverID, len(r.Points), r.Km, first)
		}
		return w.Flush()
	},
}

func init() {
	routesCmd.Flags().String("date", "", "route date YYYY-MM-DD (default today)")
	rootCmd.AddCommand(routesCmd)
}

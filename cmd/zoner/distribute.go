package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/mapview"
	"delivery-zoner/internal/models"
	"delivery-zoner/internal/parser"
	"delivery-zoner/internal/plan"
	"delivery-zoner/internal/server"
)

var distributeCmd = &cobra.Command{
	Use:   "distribute [file]",
	Short: "Geocode an order list and propose driver zones",
	Long:  "Parses and geocodes the orders, prints every distribution variant and, with --variant, the driving order for each driver.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		drivers, _ := cmd.Flags().GetInt("drivers")
		variant, _ := cmd.Flags().GetInt("variant")
		save, _ := cmd.Flags().GetBool("save")
		dateStr, _ := cmd.Flags().GetString("date")
		geojsonPath, _ := cmd.Flags().GetString("geojson")

		if drivers < 1 {
			return eris.New("--drivers must be at least 1")
		}
		if save && variant < 0 {
			return eris.New("--save needs --variant")
		}
		date := time.Now()
		if dateStr != "" {
			parsed, err := time.Parse(database.RouteDateLayout, dateStr)
			if err != nil {
				return eris.Wrapf(err, "invalid --date %q", dateStr)
			}
			date = parsed
		}

		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		orders := parser.ParseOrders(text)
		if len(orders) == 0 {
			return eris.New("no orders found in input")
		}

		db, err := server.OpenStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer db.Close() //nolint:errcheck

		stderr := cmd.ErrOrStderr()
		geocoder := server.NewGeocoder(cfg, db)
		batch, err := geocoder.GeocodeOrders(ctx, orders, func(done, total int) {
			fmt.Fprintf(stderr, "\rgeocoding %d/%d", done, total)
		})
		fmt.Fprintln(stderr)
		if err != nil {
			return eris.Wrap(err, "geocode orders")
		}
		fmt.Fprintf(stderr, "found %d, failed %d\n", batch.Found, batch.Failed)
		for i, o := range orders {
			if o.State == models.GeocodeFailed {
				fmt.Fprintf(stderr, "  %d. %s: %s\n", i+1, o.Address, o.Error)
			}
		}

		p := plan.New(orders, drivers, cfg.ZoningParams())
		out := cmd.OutOrStdout()
		printVariants(out, p)

		if variant >= 0 {
			if err := p.SelectVariant(variant); err != nil {
				return eris.Wrapf(err, "select variant %d", variant)
			}
			printRoutes(out, p)
		}

		if geojsonPath != "" {
			data, err := mapview.FromPlan(p).MarshalJSON()
			if err != nil {
				return eris.Wrap(err, "encode geojson")
			}
			if err := os.WriteFile(geojsonPath, data, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", geojsonPath)
			}
		}

		if save {
			records, err := p.RouteRecords(date)
			if err != nil {
				return err
			}
			saved, err := db.Routes().Save(ctx, records)
			if err != nil {
				return eris.Wrap(err, "save routes")
			}
			zap.L().Info("routes saved",
				zap.Int("routes", len(saved)),
				zap.String("date", database.NormalizeRouteDate(date).Format(database.RouteDateLayout)),
			)
		}
		return nil
	},
}

func printVariants(out io.Writer, p *plan.Plan) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tVARIANT\tLOAD (orders / km)")
	for i, v := range p.Variants {
		loads := make([]string, len(v.Stats))
		for d, s := range v.Stats {
			loads[d] = fmt.Sprintf("%d/%.1f", s.Count, s.Km)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, v.Label, strings.Join(loads, "  "))
	}
	w.Flush() //nolint:errcheck
}

func printRoutes(out io.Writer, p *plan.Plan) {
	stats := p.Summary().Drivers
	for d, route := range p.Routes() {
		fmt.Fprintf(out, "\nDriver %d: %d stops, %.1f km\n", d+1, stats[d].Count, stats[d].Km)
		for seq, o := range route {
			line := fmt.Sprintf("  %d. %s", seq+1, o.Address)
			if o.TimeWindow != "" {
				line += " [" + o.TimeWindow + "]"
			}
			if o.Phone != "" {
				line += " " + o.Phone
			}
			fmt.Fprintln(out, line)
		}
	}
}

func init() {
	distributeCmd.Flags().Int("drivers", 3, "number of drivers")
	distributeCmd.Flags().Int("variant", -1, "variant to expand into routes")
	distributeCmd.Flags().Bool("save", false, "store the selected variant's routes")
	distributeCmd.Flags().String("date", "", "route date YYYY-MM-DD (default today)")
	distributeCmd.Flags().String("geojson", "", "write the plan as GeoJSON to this file")
	rootCmd.AddCommand(distributeCmd)
}

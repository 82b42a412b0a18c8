package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"delivery-zoner/internal/parser"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse an order list and print it as JSON",
	Long:  "Reads pasted order text from a file or stdin and prints the recognised orders. Nothing is geocoded.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(parser.ParseOrders(text))
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// tickersCmd lists the ticker catalog with tax categories and
// replacement chains.
var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "List the ticker catalog",
	Long: `List every ticker in the catalog with its tax category and the
early-replacement chain used to extend its history backwards.`,
	RunE: runTickers,
}

func init() {
	rootCmd.AddCommand(tickersCmd)
}

func runTickers(cmd *cobra.Command, args []string) error {
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tCATEGORY\tREPLACEMENT CHAIN")
	for _, ticker := range catalog.Tickers() {
		info, _ := catalog.Lookup(ticker)
		chain, err := catalog.ReplacementChain(ticker)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", ticker, info.TaxCategory, strings.Join(chain, " -> "))
	}
	return w.Flush()
}

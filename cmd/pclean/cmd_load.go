package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pclean-go/pclean/internal/persist"
)

var loadDumpPath string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Round-trip a persisted cluster dump for inspection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoad()
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadDumpPath, "dump", "", "cluster dump path (required)")
	loadCmd.MarkFlagRequired("dump")
	rootCmd.AddCommand(loadCmd)
}

func runLoad() error {
	f, err := os.Open(loadDumpPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", loadDumpPath, err)
	}
	defer f.Close()

	dump, err := persist.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing dump: %w", err)
	}

	fmt.Printf("%d domain partitions, %d outer tables\n", len(dump.Domains), len(dump.Outer))
	for _, p := range dump.Domains {
		fmt.Printf("  domain %-20s table %-4d entities %v\n", p.Domain, p.Table, p.Entities)
	}
	for table, names := range dump.Outer {
		fmt.Printf("  outer table %-4d relations %v\n", table, names)
	}
	return nil
}

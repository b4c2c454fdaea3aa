package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pclean-go/pclean/internal/hirm"
	"github.com/pclean-go/pclean/internal/irm"
	"github.com/pclean-go/pclean/internal/persist"
	"github.com/pclean-go/pclean/internal/schema"
	"github.com/pclean-go/pclean/internal/statusapi"
)

var serveDumpPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only status REST API over a loaded cluster dump",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveDumpPath, "dump", "", "cluster dump path (required)")
	serveCmd.MarkFlagRequired("dump")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	log := rootLogger()
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	doc, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	model, err := buildModel(doc)
	if err != nil {
		return fmt.Errorf("building model: %w", err)
	}

	f, err := os.Open(serveDumpPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", serveDumpPath, err)
	}
	dump, err := persist.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parsing dump: %w", err)
	}
	if err := restoreClustering(model.Hirm, dump); err != nil {
		return fmt.Errorf("restoring clustering: %w", err)
	}

	server := statusapi.NewServer(model.Hirm, cfg.StatusAPI)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down status API server")
		cancel()
	}()

	return server.Start(ctx)
}

// restoreClustering re-homes a freshly built model's domain partitions and
// relation-to-table assignment to match a previously persisted dump. It
// cannot recover the tuple values themselves — those were never part of the
// dump (§6) — so scores computed against the restored model reflect only
// the domains' and relations' cluster structure, not relearned data.
func restoreClustering(h *hirm.HIRM, dump *persist.ClusterDump) error {
	byDomain := make(map[string][]persist.DomainPartition)
	for _, p := range dump.Domains {
		byDomain[p.Domain] = append(byDomain[p.Domain], p)
	}
	for _, irmModel := range h.TableToIRM {
		for name, dom := range irmModel.Domains {
			for _, p := range byDomain[name] {
				for _, item := range p.Entities {
					dom.PrepareMemberAt(item, p.Table)
				}
			}
		}
	}

	for table, names := range dump.Outer {
		for _, name := range names {
			if err := moveRelationToTable(h, name, table); err != nil {
				return err
			}
		}
	}
	return nil
}

func moveRelationToTable(h *hirm.HIRM, name string, table int) error {
	rel, ok := h.Relations[name]
	if !ok {
		return fmt.Errorf("serve: dump references unknown relation %q", name)
	}
	code, ok := h.NameToCode[name]
	if !ok {
		return fmt.Errorf("serve: relation %q has no assigned code", name)
	}

	if origTable, ok := h.Outer.Assignment(code); ok {
		if origTable == table {
			return nil
		}
		if oldIRM, ok := h.TableToIRM[origTable]; ok {
			oldIRM.RemoveRelation(name)
			if oldIRM.IsEmpty() {
				delete(h.TableToIRM, origTable)
			}
		}
		h.Outer.Unincorporate(code)
	}

	target, ok := h.TableToIRM[table]
	if !ok {
		target = irm.New()
		h.TableToIRM[table] = target
	}
	target.AddRelation(name, rel)
	h.Outer.Incorporate(code, table)
	return nil
}

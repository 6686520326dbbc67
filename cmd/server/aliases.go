package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agenthands/graphrag/internal/core/alias"
	"github.com/agenthands/graphrag/internal/core/linker"
	"github.com/agenthands/graphrag/internal/driver"
	"github.com/agenthands/graphrag/internal/logger"
)

var aliasesCmd = &cobra.Command{
	Use:   "aliases <term>",
	Short: "Show how a term links to graph entities",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Init(logger.Options{Level: "warn", Format: "text"})

		var store *driver.Store
		if cfg.Linking.BootstrapFromGraph {
			d, err := driver.NewNeo4jDriver(cfg.Graph)
			if err != nil {
				return err
			}
			defer d.Close(context.Background())
			store = driver.NewStore(d, cfg.Graph.QueryTimeout())
		}
		idx, err := buildIndex(ctx, cfg.Linking, store)
		if err != nil {
			return err
		}

		term := strings.Join(args, " ")
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "index %s, %d entities, key %q\n", idx.Version(), idx.Size(), alias.Normalize(term))

		l := linker.New(idx, linker.Options{
			MaxNGram:            cfg.Linking.MaxNGram,
			SimilarityThreshold: cfg.Linking.SimilarityThreshold,
			MinFuzzyLength:      cfg.Linking.MinFuzzyLength,
		})
		mentions := l.Link(ctx, term)
		if len(mentions) == 0 {
			fmt.Fprintln(out, "no match")
			return nil
		}
		for _, m := range mentions {
			fmt.Fprintf(out, "%q [%d:%d] ambiguous=%t\n", m.Span, m.Start, m.End, m.Ambiguous)
			for _, c := range m.Candidates {
				fmt.Fprintf(out, "  %-20s %-12s %.3f %-9s %s\n", c.Entity.ID, c.Entity.Type, c.Score, c.Match, c.Entity.DisplayName())
			}
		}
		return nil
	},
}

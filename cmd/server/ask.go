package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agenthands/graphrag/internal/core/model"
)

var (
	askWithContext bool
	askJSON        bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		ans, err := a.pipeline.Answer(ctx, model.Question{
			Text:          strings.Join(args, " "),
			ReturnContext: askWithContext,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if askJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(ans)
		}
		fmt.Fprintf(out, "intent:   %s\nstrategy: %s\nnotes:    %s\n\n%s\n", ans.IntentType, ans.Strategy, ans.IntentNotes, ans.Text)
		if ans.Context != nil {
			fmt.Fprintf(out, "\n--- context ---\n%s\n", *ans.Context)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askWithContext, "context", false, "print the retrieved context")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
}

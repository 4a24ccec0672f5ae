package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/venture-kit/plan-proxy/internal/planner"
)

var askReq planner.Request

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Run one assist request from the command line",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("ask"); err != nil {
			return err
		}
		st, err := buildStack(cfg)
		if err != nil {
			return err
		}
		caller, err := st.caller()
		if err != nil {
			return err
		}

		env, err := st.orch.Handle(ctx, caller, askReq)
		if err != nil {
			if he, ok := planner.AsHTTPError(err); ok {
				out, _ := json.MarshalIndent(he.Body(), "", "  ")
				fmt.Println(string(out))
			}
			return err
		}

		out, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askReq.Type, "type", "", "request kind (ideas, solutions, milestone, plan, plan_financials, search)")
	askCmd.Flags().StringVar(&askReq.Query, "query", "", "topic or search query")
	askCmd.Flags().StringVar(&askReq.Activity, "activity", "", "business activity (solutions)")
	askCmd.Flags().StringVar(&askReq.Problem, "problem", "", "problem statement (solutions)")
	askCmd.Flags().StringVar(&askReq.Goal, "goal", "", "goal statement")
	askCmd.Flags().StringVar(&askReq.Title, "title", "", "milestone title")
	askCmd.Flags().IntVar(&askReq.Limit, "limit", 0, "result count (kind-specific default)")
	askCmd.Flags().StringVar(&askReq.Context, "context", "", "plan context")
	askCmd.Flags().StringVar(&askReq.Suggestion, "suggestion", "", "selected strategy suggestion (plan)")
	askCmd.Flags().BoolVar(&askReq.ForceFallback, "force-fallback", false, "skip the model and return the heuristic result")
	askCmd.Flags().BoolVar(&askReq.StrictModel, "strict", false, "fail instead of substituting heuristics")
	rootCmd.AddCommand(askCmd)
}

package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/hustariz/rascarobingo/internal/apiclient"
	"github.com/hustariz/rascarobingo/internal/lifecycle"
	"github.com/hustariz/rascarobingo/internal/models"
	"github.com/spf13/cobra"
)

var (
	exitPrice  float64
	profitLoss float64
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the caller's risk profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := client().GetRiskProfile(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, profile)
	},
}

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List the caller's trades, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		trades, err := client().ListTrades(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSYMBOL\tSIDE\tENTRY\tSTOP\tTARGET\tRR\tSTATUS\tPROFIT")
		for _, t := range trades {
			side := "short"
			if t.IsLong {
				side = "long"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%g\t%.2f\t%s\t%.2f\n",
				t.ID, t.Symbol, side, t.EntryPrice, t.StopLoss, t.TakeProfit, t.RiskRewardRatio, t.Status, t.ActualProfit)
		}
		return w.Flush()
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <trade-id> <status>",
	Short: "Close a trade as TARGET_HIT, STOPLOSS_HIT or CLOSED",
	Long: `close moves an OPEN trade to a terminal status.

CLOSED is a manual exit and needs --exit-price or --profit-loss.

Example:
  journalctl close 01JABCDEF TARGET_HIT
  journalctl close 01JABCDEF CLOSED --exit-price 104.5`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := models.ParseStatus(args[1])
		if err != nil {
			return err
		}
		req := lifecycle.CloseRequest{Status: status}
		if cmd.Flags().Changed("exit-price") {
			req.ExitPrice = &exitPrice
		}
		if cmd.Flags().Changed("profit-loss") {
			req.ProfitLoss = &profitLoss
		}

		res, err := client().CloseTrade(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <trade-id>",
	Short: "Delete a trade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().DeleteTrade(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <symbol> <long|short> <entry> <stop> <target>",
	Short: "Journal a new OPEN trade",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := lifecycle.NewTrade{Symbol: args[0]}
		switch args[1] {
		case "long":
			in.IsLong = true
		case "short":
		default:
			return fmt.Errorf("side must be long or short, got %q", args[1])
		}
		prices := make([]float64, 3)
		for i, s := range args[2:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", s, err)
			}
			prices[i] = v
		}
		in.EntryPrice, in.StopLoss, in.TakeProfit = prices[0], prices[1], prices[2]

		trade, err := client().CreateTrade(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(cmd, trade)
	},
}

// client is replaced in tests.
var client = func() apiclient.Journal {
	return apiclient.New(&cfg.Client, log)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	closeCmd.Flags().Float64Var(&exitPrice, "exit-price", 0, "exit price of a manual close")
	closeCmd.Flags().Float64Var(&profitLoss, "profit-loss", 0, "explicit signed P/L of a manual close")

	rootCmd.AddCommand(profileCmd, tradesCmd, closeCmd, deleteCmd, openCmd)
}

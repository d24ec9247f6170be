// Command paywatch follows an order the way the payment page does: it polls
// the status route and, if no result arrives in time, offers manual
// verification.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"payment-service/internal/config"
	"payment-service/internal/domain"
	"payment-service/internal/logging"
	"payment-service/internal/poller"

	"github.com/spf13/cobra"
)

func main() {
	var (
		cfgPath string
		token   string
	)

	load := func() (*config.Config, *poller.Client, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}
		if token != "" {
			cfg.Poll.Token = token
		}
		if cfg.Poll.Token == "" {
			return nil, nil, fmt.Errorf("a bearer token is required (--token or POLL_TOKEN)")
		}
		return cfg, poller.NewClient(cfg.Poll.APIURL, cfg.Poll.Token, cfg.Poll.Interval*5), nil
	}

	root := &cobra.Command{
		Use:           "paywatch",
		Short:         "Watch an order until its payment settles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&token, "token", "", "bearer token of the buyer")

	var verify bool
	watch := &cobra.Command{
		Use:   "watch <orderId>",
		Short: "Poll the order status until it is paid, failed or the attempts run out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := load()
			if err != nil {
				return err
			}
			logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			out := cmd.OutOrStdout()

			p := poller.New(client, cfg.Poll.Interval, cfg.Poll.MaxAttempts, logger)
			res, err := p.Run(cmd.Context(), args[0], func(attempt int, v domain.StatusView) {
				fmt.Fprintf(out, "[%d/%d] %s\n", attempt, cfg.Poll.MaxAttempts, v.Status)
			})
			if err != nil {
				return err
			}

			switch res.Verdict {
			case poller.VerdictPaid:
				fmt.Fprintln(out, "Payment received.")
			case poller.VerdictFailed:
				reason := "Payment Failed"
				if res.Last.FailureReason != nil {
					reason = *res.Last.FailureReason
				}
				fmt.Fprintf(out, "Payment failed: %s\n", reason)
			case poller.VerdictTimedOut:
				fmt.Fprintln(out, "No confirmation received yet. If you completed the payment, verify it manually.")
				if verify {
					return manualVerify(cmd.Context(), client, args[0], cmd)
				}
			}
			return nil
		},
	}
	watch.Flags().BoolVar(&verify, "verify", false, "request manual verification after a timeout")

	root.AddCommand(watch)
	root.AddCommand(&cobra.Command{
		Use:   "verify <orderId>",
		Short: "Mark an order as paid without waiting for the gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := load()
			if err != nil {
				return err
			}
			return manualVerify(cmd.Context(), client, args[0], cmd)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func manualVerify(ctx context.Context, c *poller.Client, orderID string, cmd *cobra.Command) error {
	status, err := c.ManualVerify(ctx, orderID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s.\n", orderID, status)
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"payconnect/internal/config"
	"payconnect/internal/service"
)

func sweepExpiredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-expired",
		Short: "Expire abandoned charges older than the configured window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sweeper := service.NewExpiry(st, clientRegistry(), cfg.ExpiryWindow, logger)
			expired, err := sweeper.Sweep(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("expired %d charge(s)\n", expired)
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"payconnect/internal/config"
	"payconnect/internal/domain"
)

func createAccountCmd() *cobra.Command {
	var provider, accountType string

	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Register a gateway account and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch provider {
			case domain.ProviderSandbox, domain.ProviderWorldpay, domain.ProviderSmartpay, domain.ProviderEpdq:
			default:
				return fmt.Errorf("unknown provider %q", provider)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			account := &domain.GatewayAccount{PaymentProvider: provider, Type: accountType}
			if err := st.CreateAccount(context.Background(), account); err != nil {
				return err
			}
			fmt.Printf("created gateway account %d (%s, %s)\n", account.ID, provider, accountType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", domain.ProviderSandbox, "payment provider (sandbox, worldpay, smartpay, epdq)")
	cmd.Flags().StringVarP(&accountType, "type", "t", "test", "account type (test, live)")
	return cmd
}

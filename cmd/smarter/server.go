package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smarter-sh/smarter/pkg/account"
	"github.com/smarter-sh/smarter/pkg/api"
	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/broker/kinds"
	"github.com/smarter-sh/smarter/pkg/events"
	"github.com/smarter-sh/smarter/pkg/security"
	"github.com/smarter-sh/smarter/pkg/storage"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the Smarter server",
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Smarter API server",
	Long: `Start the REST API server backed by the local data directory.

On a fresh data directory a default account with an admin user is
provisioned; its API key is printed once at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := viper.GetString("data_dir")
		listenAddr := viper.GetString("listen_addr")
		passphrase := viper.GetString("secret_passphrase")
		if passphrase == "" {
			return fmt.Errorf("SMARTER_SECRET_PASSPHRASE is required to start the server")
		}

		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return fmt.Errorf("failed to create data directory: %v", err)
		}

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %v", err)
		}
		defer store.Close()

		secrets, err := security.NewManagerFromPassphrase(passphrase)
		if err != nil {
			return fmt.Errorf("failed to initialize secrets manager: %v", err)
		}
		bus := events.NewBus()
		bus.Start()
		defer bus.Stop()

		defaultAccount, err := account.Bootstrap(store, viper.GetString("company_name"))
		if err != nil {
			return fmt.Errorf("failed to bootstrap account: %v", err)
		}

		server := api.NewServer(api.Config{
			Addr:     listenAddr,
			Registry: kinds.NewRegistry(),
			Brokers: broker.Config{
				Store:   store,
				Secrets: secrets,
				Events:  bus,
			},
			Resolver: account.NewResolver(store),
			Store:    store,
		})

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil {
				errCh <- fmt.Errorf("API server error: %v", err)
			}
		}()

		fmt.Printf("Smarter server listening on %s\n", listenAddr)
		fmt.Printf("  Account: %s\n", defaultAccount.AccountNumber)
		fmt.Printf("  Data:    %s\n", dataDir)
		fmt.Println("Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down cleanly: %v", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	serverCmd.AddCommand(serverStartCmd)

	serverStartCmd.Flags().String("listen-addr", viper.GetString("listen_addr"), "Address for the REST API")
	serverStartCmd.Flags().String("data-dir", viper.GetString("data_dir"), "Data directory for persisted state")
	viper.BindPFlag("listen_addr", serverStartCmd.Flags().Lookup("listen-addr"))
	viper.BindPFlag("data_dir", serverStartCmd.Flags().Lookup("data-dir"))
}

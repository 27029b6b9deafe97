package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/marketlink/internal/adapters/driven/oauth"
	"github.com/custodia-labs/marketlink/internal/config"
	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
	"github.com/custodia-labs/marketlink/internal/core/ports/driving"
	"github.com/custodia-labs/marketlink/internal/core/services"
)

// app carries state shared by every command. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "marketlink",
		Short: "Manage marketplace OAuth credentials",
		Long: `marketlink provisions, authorizes, refreshes and reports on marketplace
credentials (Etsy, Joom, Shopify, eBay). Settings are read from the environment.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Logger()
			slog.SetDefault(a.logger)
			return nil
		},
	}

	root.AddCommand(
		newSetupCmd(a),
		newCompleteCmd(a),
		newProvisionCmd(a),
		newRefreshCmd(a),
		newStatusCmd(a),
		newDeactivateCmd(a),
		newSweepCmd(a),
		newTokenCmd(a),
		newServeCmd(a),
	)
	return root
}

// withCredentials opens the backend, builds the credential service and
// runs fn. The backend is closed when fn returns.
func (a *app) withCredentials(ctx context.Context, metrics driven.CredentialMetrics, fn func(*backend, driving.CredentialService) error) error {
	b, err := openBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b, a.credentialService(b, metrics))
}

func (a *app) credentialService(b *backend, metrics driven.CredentialMetrics) driving.CredentialService {
	return services.NewCredentialService(services.CredentialServiceConfig{
		Store:               b.Store,
		StateLedger:         b.Ledger,
		Providers:           a.cfg.Providers,
		TokenEndpoint:       oauth.NewTokenEndpoint(a.cfg.TokenEndpointTimeout),
		Lock:                b.Lock,
		Metrics:             metrics,
		Logger:              a.logger,
		RefreshSafetyMargin: a.cfg.RefreshSafetyMargin,
		RefreshMaxAttempts:  a.cfg.RefreshMaxAttempts,
		LeaseTTL:            a.cfg.RefreshLeaseTTL,
		LeaseWait:           a.cfg.RefreshLeaseWait,
		RefreshTimeout:      a.cfg.RefreshTimeout(),
	})
}

// marketplaceArg parses the first positional argument.
func marketplaceArg(args []string) (domain.Marketplace, error) {
	return domain.ParseMarketplace(args[0])
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

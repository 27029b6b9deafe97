package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/marketlink/internal/adapters/driven/auth"
	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
	"github.com/custodia-labs/marketlink/internal/core/ports/driving"
	"github.com/custodia-labs/marketlink/internal/core/services"
)

func newSetupCmd(a *app) *cobra.Command {
	var (
		profile     string
		redirectURI string
		scopes      []string
		shop        string
	)

	cmd := &cobra.Command{
		Use:   "setup <marketplace>",
		Short: "Start an authorization flow and print the consent URL",
		Long: `Records a single-use authorization state and prints the provider consent
URL to stdout. After approving access, finish with "marketlink complete" or let
the running server receive the callback.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			marketplace, err := marketplaceArg(args)
			if err != nil {
				return err
			}
			// Provider settings are checked before any store is opened.
			if err := a.validateProvider(marketplace, shop, redirectURI); err != nil {
				return err
			}

			return a.withCredentials(cmd.Context(), nil, func(_ *backend, svc driving.CredentialService) error {
				resp, err := svc.BeginAuthorization(cmd.Context(), driving.BeginAuthorizationRequest{
					Marketplace: marketplace,
					ProfileName: profile,
					RedirectURI: redirectURI,
					Scopes:      scopes,
					ShopDomain:  shop,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.AuthorizationURL)
				fmt.Fprintf(cmd.ErrOrStderr(), "state %s expires at %s\n", resp.State, resp.ExpiresAt.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profile, "profile", domain.DefaultProfileName, "Credential profile name")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "Override the configured redirect URI")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "Override the configured scopes")
	cmd.Flags().StringVar(&shop, "shop", "", "Shop domain for per-shop providers")
	return cmd
}

func (a *app) validateProvider(marketplace domain.Marketplace, shop, redirectURI string) error {
	configured, err := a.cfg.Providers.Provider(marketplace)
	if err != nil {
		return err
	}
	provider, err := configured.ForShop(shop)
	if err != nil {
		return err
	}
	if redirectURI != "" {
		provider.RedirectURI = redirectURI
	}
	return provider.Validate()
}

func newCompleteCmd(a *app) *cobra.Command {
	var req driving.CompleteAuthorizationRequest
	var marketplace string

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Exchange an authorization code for tokens",
		Long: `Consumes the authorization state and exchanges the code returned on the
provider redirect. The resulting tokens become the active credential.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if marketplace != "" {
				m, err := domain.ParseMarketplace(marketplace)
				if err != nil {
					return err
				}
				req.Marketplace = m
			}

			return a.withCredentials(cmd.Context(), nil, func(_ *backend, svc driving.CredentialService) error {
				cred, err := svc.CompleteAuthorization(cmd.Context(), req)
				if err != nil {
					return err
				}
				return a.printSummary(cmd, svc, cred)
			})
		},
	}

	cmd.Flags().StringVar(&req.Code, "code", "", "Authorization code from the redirect")
	cmd.Flags().StringVar(&req.State, "state", "", "State from the redirect")
	cmd.Flags().StringVar(&marketplace, "marketplace", "", "Expected marketplace (optional)")
	cmd.Flags().StringVar(&req.Error, "error", "", "Error reported on the redirect")
	cmd.Flags().StringVar(&req.ErrorDescription, "error-description", "", "Error description reported on the redirect")
	cmd.MarkFlagRequired("state")
	return cmd
}

func newProvisionCmd(a *app) *cobra.Command {
	var (
		profile   string
		secrets   map[string]string
		expiresIn time.Duration
		expiresAt string
	)

	cmd := &cobra.Command{
		Use:   "provision <marketplace>",
		Short: "Store static secrets as the active credential",
		Example: `  marketlink provision joom --secret apiKey=...
  marketlink provision etsy --secret accessToken=... --secret refreshToken=... --expires-in 1h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			marketplace, err := marketplaceArg(args)
			if err != nil {
				return err
			}
			req := driving.ProvisionStaticRequest{
				Marketplace: marketplace,
				ProfileName: profile,
				Secrets:     secrets,
			}
			switch {
			case expiresAt != "" && expiresIn > 0:
				return fmt.Errorf("%w: --expires-at and --expires-in are mutually exclusive", domain.ErrInvalidInput)
			case expiresAt != "":
				t, err := time.Parse(time.RFC3339, expiresAt)
				if err != nil {
					return fmt.Errorf("%w: --expires-at: %w", domain.ErrInvalidInput, err)
				}
				req.ExpiresAt = &t
			case expiresIn > 0:
				t := time.Now().Add(expiresIn).UTC()
				req.ExpiresAt = &t
			}

			return a.withCredentials(cmd.Context(), nil, func(_ *backend, svc driving.CredentialService) error {
				cred, err := svc.ProvisionStatic(cmd.Context(), req)
				if err != nil {
					return err
				}
				return a.printSummary(cmd, svc, cred)
			})
		},
	}

	cmd.Flags().StringVar(&profile, "profile", domain.DefaultProfileName, "Credential profile name")
	cmd.Flags().StringToStringVar(&secrets, "secret", nil, "Secret as key=value (repeatable)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Access token lifetime from now")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "Access token expiry (RFC 3339)")
	cmd.MarkFlagRequired("secret")
	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	var (
		profile  string
		ifNeeded bool
	)

	cmd := &cobra.Command{
		Use:   "refresh <marketplace>",
		Short: "Renew the access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			marketplace, err := marketplaceArg(args)
			if err != nil {
				return err
			}
			return a.withCredentials(cmd.Context(), nil, func(_ *backend, svc driving.CredentialService) error {
				var cred *domain.Credential
				if ifNeeded {
					cred, err = svc.EnsureFresh(cmd.Context(), marketplace, profile)
				} else {
					cred, err = svc.Refresh(cmd.Context(), marketplace, profile)
				}
				if err != nil {
					return err
				}
				return a.printSummary(cmd, svc, cred)
			})
		},
	}

	cmd.Flags().StringVar(&profile, "profile", domain.DefaultProfileName, "Credential profile name")
	cmd.Flags().BoolVar(&ifNeeded, "if-needed", false, "Only refresh when the token is within the safety margin")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show provider configuration and credential health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withCredentials(cmd.Context(), nil, func(_ *backend, svc driving.CredentialService) error {
				statuses, err := svc.Status(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), statuses)
			})
		},
	}
}

func newDeactivateCmd(a *app) *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "deactivate <marketplace>",
		Short: "Mark a credential inactive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			marketplace, err := marketplaceArg(args)
			if err != nil {
				return err
			}
			return a.withCredentials(cmd.Context(), nil, func(_ *backend, svc driving.CredentialService) error {
				if err := svc.Deactivate(cmd.Context(), marketplace, profile); err != nil {
					return err
				}
				summary, err := svc.Get(cmd.Context(), marketplace, profile)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}

	cmd.Flags().StringVar(&profile, "profile", domain.DefaultProfileName, "Credential profile name")
	return cmd
}

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance cycle",
		Long: `Removes expired authorization states and, when REFRESH_WINDOW_SEC is set,
refreshes active credentials expiring within that window.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withCredentials(cmd.Context(), nil, func(b *backend, svc driving.CredentialService) error {
				result := a.scheduler(b, svc, nil).RunOnce(cmd.Context())
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator bearer token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireJWTSecret(); err != nil {
				return err
			}
			adapter, err := auth.NewAdapter(a.cfg.JWTSecret)
			if err != nil {
				return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
			}
			token, err := services.NewAuthService(adapter).IssueToken(cmd.Context(), subject, domain.Role(strings.ToLower(role)), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Operator name recorded in the token")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleViewer), "Role: admin or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("subject")
	return cmd
}

// printSummary prints the stored view of cred without secret values.
func (a *app) printSummary(cmd *cobra.Command, svc driving.CredentialService, cred *domain.Credential) error {
	summary, err := svc.Get(cmd.Context(), cred.Marketplace, cred.ProfileName)
	if err != nil {
		summary = cred.ToSummary(time.Now(), a.cfg.RefreshSafetyMargin)
	}
	return printJSON(cmd.OutOrStdout(), summary)
}

func (a *app) scheduler(b *backend, svc driving.CredentialService, metrics driven.CredentialMetrics) *services.Scheduler {
	return services.NewScheduler(services.SchedulerConfig{
		Store:         b.Store,
		StateLedger:   b.Ledger,
		Credentials:   svc,
		Lock:          b.Lock,
		Logger:        a.logger,
		PollInterval:  a.cfg.SweepInterval,
		RefreshWindow: a.cfg.RefreshWindow,
		Metrics:       metrics,
	})
}

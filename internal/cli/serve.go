// ABOUTME: The serve command: wires every component and runs the control plane.
// ABOUTME: Prints the startup banner, then serves until interrupted.

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BlueBirdBack/claw-desk/internal/api"
	"github.com/BlueBirdBack/claw-desk/internal/config"
	"github.com/BlueBirdBack/claw-desk/internal/conversation"
	"github.com/BlueBirdBack/claw-desk/internal/dedupe"
	"github.com/BlueBirdBack/claw-desk/internal/gateway"
	"github.com/BlueBirdBack/claw-desk/internal/notify"
	"github.com/BlueBirdBack/claw-desk/internal/provision"
	"github.com/BlueBirdBack/claw-desk/internal/registry"
	"github.com/BlueBirdBack/claw-desk/internal/tenancy"
)

// version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _                    _           _
   ___| | __ ___      ____| | ___  ___| | __
  / __| |/ _' \ \ /\ / / _' |/ _ \/ __| |/ /
 | (__| | (_| |\ V  V / (_| |  __/\__ \   <
  \___|_|\__,_| \_/\_/ \__,_|\___||___/_|\_\
`

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the control plane server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(rf.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", rf.ConfigPath)
	green.Print("    ▶ ")
	fmt.Printf("Gateway:   %s\n", cfg.Gateway.URL)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	fmt.Println()

	logger.Info("starting clawdesk",
		"config", rf.ConfigPath,
		"gateway_url", cfg.Gateway.URL,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Gateway transport
	client := gateway.NewClient(gateway.Options{
		URL:            cfg.Gateway.URL,
		Token:          cfg.Gateway.Token,
		ConnectTimeout: cfg.Gateway.ConnectTimeout,
		RequestTimeout: cfg.Gateway.RequestTimeout,
	}, logger)
	defer func() { _ = client.Close() }()

	// Provisioning over the gateway config document
	mutator := provision.NewMutator(client, logger)
	provisioner := provision.NewProvisioner(cfg.Workspace.BaseDir, mutator, logger)

	// Storage
	reg := registry.NewMemory(logger)
	store, err := conversation.NewStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Tenancy bootstrapper chain
	routes := &tenancy.RouteTable{}
	metering := &tenancy.MeteringScope{}
	tenancyCtx := tenancy.NewContext([]tenancy.Bootstrapper{
		&tenancy.AgentBootstrapper{Mapper: provisioner, Agents: mutator},
		&tenancy.RoutingBootstrapper{Table: routes},
		&tenancy.MeteringBootstrapper{Scope: metering},
	}, logger)

	// Tenant resolution
	resolver := buildResolverChain(cfg.Resolver, reg, logger)

	// Lifecycle webhooks
	notifier := notify.NewWebhook(cfg.Notify.WebhookURL, logger)

	// Chat ingress dedupe
	deliveries := dedupe.NewWindow(5*time.Minute, 10_000)
	defer deliveries.Close()

	server := api.NewServer(cfg.Server.HTTPAddr, api.New(api.Options{
		Registry:    reg,
		Provisioner: provisioner,
		Tenancy:     tenancyCtx,
		Routes:      routes,
		Metering:    metering,
		Store:       store,
		Gateway:     client,
		Notifier:    notifier,
		Resolver:    resolver,
		Deliveries:  deliveries,
		Logger:      logger,
	}), logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildResolverChain assembles the configured resolvers in priority order:
// explicit header first, then subdomain, then JWT claim.
func buildResolverChain(cfg config.ResolverConfig, reg registry.Registry, logger *slog.Logger) *tenancy.Chain {
	bySlug := func(ctx context.Context, slug string) (string, error) {
		t, err := reg.GetBySlug(ctx, slug)
		if errors.Is(err, registry.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return t.ID, nil
	}
	byAPIKey := func(ctx context.Context, key string) (string, error) {
		t, err := reg.ResolveAPIKey(ctx, key)
		if errors.Is(err, registry.ErrUnknownAPIKey) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return t.ID, nil
	}

	var resolvers []tenancy.Resolver
	if cfg.HeaderName != "" {
		resolvers = append(resolvers, &tenancy.HeaderResolver{
			HeaderName: cfg.HeaderName,
			Lookup:     byAPIKey,
		})
	}
	if cfg.RootDomain != "" {
		resolvers = append(resolvers, &tenancy.SubdomainResolver{
			RootDomain: cfg.RootDomain,
			Lookup:     bySlug,
		})
	}
	if cfg.ClaimName != "" {
		resolvers = append(resolvers, &tenancy.TokenClaimResolver{
			Secret:    []byte(cfg.JWTSecret),
			ClaimName: cfg.ClaimName,
			Logger:    logger,
		})
	}

	return tenancy.NewChain(resolvers, logger)
}

// ABOUTME: The health command: queries the running server's /health endpoint.
// ABOUTME: Prints a colorized summary of gateway connectivity and tenant count.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BlueBirdBack/claw-desk/internal/config"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check control plane health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runHealth(ctx)
		},
	}
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(rf.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		color.Red("✗ control plane unreachable: %v", err)
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		color.Red("✗ health check returned status %d", resp.StatusCode)
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}

	var body struct {
		Status           string `json:"status"`
		GatewayConnected bool   `json:"gateway_connected"`
		TenantCount      int    `json:"tenant_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}

	color.Green("✓ control plane is %s", body.Status)
	if body.GatewayConnected {
		color.Green("✓ gateway connected")
	} else {
		color.Yellow("! gateway not connected")
	}
	fmt.Printf("  tenants: %d\n", body.TenantCount)
	return nil
}

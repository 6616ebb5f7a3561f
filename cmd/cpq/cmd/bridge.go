package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solatis/cpq/internal/core/config"
	"github.com/solatis/cpq/internal/core/server"
	"github.com/solatis/cpq/internal/types"
	"github.com/solatis/cpq/internal/widget"
)

const Version = "0.1.0"

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Host the embeddable configurator bridge over gRPC",
	RunE:  runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().String("host", "127.0.0.1", "gRPC server host")
	bridgeCmd.Flags().Int("port", 50061, "gRPC server port")
	bridgeCmd.Flags().StringSlice("allowed-origin", nil, "host page origin allowed to talk to the bridge (repeatable, '*' for any)")
	bridgeCmd.Flags().String("model", "", "model to load before the host connects")
	bridgeCmd.Flags().String("from", "", "share token or share URL to restore before the host connects")
	bridgeCmd.Flags().Int("height", 0, "initial widget height in pixels announced to the host (0 to skip)")
}

func applyBridgeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.BridgeHost, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.BridgePort, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("allowed-origin") {
		origins, _ := cmd.Flags().GetStringSlice("allowed-origin")
		cfg.AllowedOrigins = config.ParseOrigins(origins)
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	applyBridgeFlags(cmd, a.cfg)

	store, err := a.newStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	modelID, _ := cmd.Flags().GetString("model")
	from, _ := cmd.Flags().GetString("from")
	switch {
	case from != "":
		token, err := shareTokenArg(from)
		if err != nil {
			return err
		}
		if !store.LoadShared(ctx, token) {
			return fmt.Errorf("could not restore session from share token")
		}
	case modelID != "":
		if err := store.SetModel(ctx, types.ModelID(modelID)); err != nil {
			return err
		}
	}

	events := server.NewBroadcaster(0, a.log)
	bridge, err := widget.New(store, events, widget.Options{
		AllowedOrigins: a.cfg.AllowedOrigins,
		Logger:         a.log,
	})
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}
	if err := bridge.Start(); err != nil {
		return err
	}
	defer bridge.Stop()
	if height, _ := cmd.Flags().GetInt("height"); height != 0 {
		if err := bridge.Resize(height); err != nil {
			return fmt.Errorf("--height: %w", err)
		}
	}

	service, err := server.NewBridgeService(bridge, events, a.log)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	grpcServer, err := server.NewGRPCServer(a.cfg, service)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	a.log.Info("starting configurator bridge",
		"version", Version,
		"host", a.cfg.BridgeHost,
		"port", a.cfg.BridgePort,
		"allowed_origins", a.cfg.AllowedOrigins)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		a.log.Info("shutting down gracefully", "host_theme", bridge.Theme())
		if err := grpcServer.Shutdown(ctx); err != nil {
			return err
		}
		// Flush a dirty session before exit.
		if st := store.Snapshot(); st.IsDirty && st.Model != nil {
			if err := store.Save(ctx); err != nil {
				a.log.Warn("final save failed", "error", err)
			}
		}
		return nil
	}
}

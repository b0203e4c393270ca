// cmd/server/commands.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"openbci-service/internal/config"
	"openbci-service/internal/protocol"
)

var (
	configDir string
	boardPort string
	simulate  bool
)

var rootCmd = &cobra.Command{
	Use:   "openbci-service",
	Short: "HTTP and WebSocket service for OpenBCI boards",
	Long:  "openbci-service drives an OpenBCI Cyton board over serial, WiFi or a built-in simulator and exposes it over REST and WebSocket.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE:  runServe,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long:  "List the serial ports on this host. OpenBCI dongles are listed first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := protocol.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}
		for _, p := range ports {
			marker := " "
			if protocol.IsDongle(p) {
				marker = "*"
			}
			if p.IsUSB {
				fmt.Printf("%s %-20s %s:%s %s %s\n", marker, p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
			} else {
				fmt.Printf("%s %s\n", marker, p.Name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing config.yaml")
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVar(&boardPort, "port", "", "board port, overrides board.port")
		c.Flags().BoolVar(&simulate, "simulate", false, "use the simulated board")
	}
	rootCmd.AddCommand(serveCmd, portsCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var paths []string
	if configDir != "" {
		paths = append(paths, configDir)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Board.Port = boardPort
		cfg.Board.Simulate = false
	}
	if cmd.Flags().Changed("simulate") {
		cfg.Board.Simulate = simulate
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Start()
}

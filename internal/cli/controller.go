// Package cli implements the ofmesh subcommands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okdaichi/ofmesh/internal/controller"
	"github.com/okdaichi/ofmesh/internal/hosts"
	"github.com/okdaichi/ofmesh/observability"
	"gopkg.in/yaml.v3"
)

const defaultListenAddr = ":8090"

// RunController starts the SDN controller.
func RunController(args []string) error {
	fs := flag.NewFlagSet("controller", flag.ExitOnError)
	var configFile = fs.String("config", "config.controller.yaml", "path to config file")
	fs.Parse(args)

	cfg, obsCfg, err := loadControllerConfig(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := observability.Setup(ctx, obsCfg); err != nil {
		return fmt.Errorf("observability setup: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			slog.Warn("observability shutdown", "error", err)
		}
	}()

	ctrl := controller.New(cfg)

	slog.Info("admin plane routes",
		"graph", "/graph", "route", "/route", "hosts", "/hosts",
		"health", "/health", "metrics", "/metrics")

	// The external OpenFlow stack attaches here: it adapts its switch
	// sessions to southbound.Connection and feeds decoded events into
	// ctrl.Southbound().
	return ctrl.Run(ctx)
}

// yamlControllerConfig mirrors the config file layout.
type yamlControllerConfig struct {
	Controller struct {
		ListenAddr          string `yaml:"listen_addr"`
		ControllerMAC       string `yaml:"controller_mac"`
		LLDPTTLSec          int    `yaml:"lldp_ttl_sec"`
		FlowIdleTimeoutSec  int    `yaml:"flow_idle_timeout_sec"`
		ClearFlowsOnConnect bool   `yaml:"clear_flows_on_connect"`
		InjectTriggerPacket bool   `yaml:"inject_trigger_packet"`
	} `yaml:"controller"`

	Observability struct {
		Metrics   bool   `yaml:"metrics"`
		TraceAddr string `yaml:"trace_addr"`
		LogAddr   string `yaml:"log_addr"`
	} `yaml:"observability"`

	StaticHosts []struct {
		IP   string `yaml:"ip"`
		MAC  string `yaml:"mac"`
		DPID uint64 `yaml:"dpid"`
		Port uint16 `yaml:"port"`
	} `yaml:"static_hosts"`
}

func loadControllerConfig(filename string) (controller.Config, observability.Config, error) {
	var cfg controller.Config
	var obsCfg observability.Config

	file, err := os.Open(filename)
	if err != nil {
		return cfg, obsCfg, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var ymlCfg yamlControllerConfig
	if err := yaml.NewDecoder(file).Decode(&ymlCfg); err != nil {
		return cfg, obsCfg, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.ListenAddr = ymlCfg.Controller.ListenAddr
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}

	if ymlCfg.Controller.ControllerMAC != "" {
		mac, err := net.ParseMAC(ymlCfg.Controller.ControllerMAC)
		if err != nil {
			return cfg, obsCfg, fmt.Errorf("invalid controller_mac: %w", err)
		}
		cfg.ControllerMAC = mac
	}

	cfg.LLDPTTL = time.Duration(ymlCfg.Controller.LLDPTTLSec) * time.Second
	cfg.FlowIdleTimeout = time.Duration(ymlCfg.Controller.FlowIdleTimeoutSec) * time.Second
	cfg.ClearFlowsOnConnect = ymlCfg.Controller.ClearFlowsOnConnect
	cfg.InjectTriggerPacket = ymlCfg.Controller.InjectTriggerPacket

	for _, h := range ymlCfg.StaticHosts {
		ip, err := netip.ParseAddr(h.IP)
		if err != nil {
			return cfg, obsCfg, fmt.Errorf("invalid static host ip %q: %w", h.IP, err)
		}
		mac, err := net.ParseMAC(h.MAC)
		if err != nil {
			return cfg, obsCfg, fmt.Errorf("invalid static host mac %q: %w", h.MAC, err)
		}
		cfg.StaticHosts = append(cfg.StaticHosts, hosts.Record{
			DPID: h.DPID,
			Port: h.Port,
			MAC:  mac,
			IP:   ip,
		})
	}

	obsCfg = observability.Config{
		Service:   "ofmesh",
		Metrics:   ymlCfg.Observability.Metrics,
		TraceAddr: ymlCfg.Observability.TraceAddr,
		LogAddr:   ymlCfg.Observability.LogAddr,
	}

	return cfg, obsCfg, nil
}

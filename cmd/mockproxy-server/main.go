package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mockproxy/mockproxy/cert"
	"github.com/mockproxy/mockproxy/control"
	"github.com/mockproxy/mockproxy/proxy"
	"github.com/mockproxy/mockproxy/version"
)

type config struct {
	version bool

	Addr               string
	ControlAddr        string
	InsecureSkipVerify bool
	CertPath           string
	Debug              bool
	Upstream           string
	InstanceName       string
	RulesFile          string
	LogFilePath        string
}

func loadConfig() *config {
	c := new(config)
	flag.BoolVar(&c.version, "version", false, "show mockproxy-server version")
	flag.StringVar(&c.Addr, "addr", ":8080", "proxy listen addr")
	flag.StringVar(&c.ControlAddr, "control-addr", ":9080", "remote-control websocket listen addr")
	flag.BoolVar(&c.InsecureSkipVerify, "insecure-skip-verify", false, "don't verify upstream server TLS certificates")
	flag.StringVar(&c.CertPath, "cert-path", "", "directory to persist the generated CA in")
	flag.BoolVar(&c.Debug, "debug", false, "print debug logs")
	flag.StringVar(&c.Upstream, "upstream", "", "upstream proxy URL, e.g. socks5://127.0.0.1:1080")
	flag.StringVar(&c.InstanceName, "instance-name", "", "label used in logs")
	flag.StringVar(&c.RulesFile, "rules-file", "", "JSON file of rules to register at startup (array of addRule payloads)")
	flag.StringVar(&c.LogFilePath, "log-file", "", "route this instance's logs to a file instead of stdout")
	flag.Parse() //revive:disable-line:deep-exit -- ok for cmd/*
	return c
}

func main() {
	cfg := loadConfig()

	if cfg.version {
		fmt.Println("mockproxy-server: " + version.Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ca, err := cert.NewSelfSignCA(cfg.CertPath)
	if err != nil {
		slog.Error("failed to create CA", "error", err)
		os.Exit(1)
	}

	p, err := proxy.NewProxy(proxy.Config{
		Addr:               cfg.Addr,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Upstream:           cfg.Upstream,
		InstanceName:       cfg.InstanceName,
		LogFilePath:        cfg.LogFilePath,
	}, ca)
	if err != nil {
		slog.Error("failed to create proxy", "error", err)
		os.Exit(1)
	}

	if cfg.RulesFile != "" {
		if err := control.LoadRulesFile(p, cfg.RulesFile); err != nil {
			slog.Error("failed to load rules file", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("mockproxy-server starting", slog.String("version", p.Version), slog.String("addr", cfg.Addr))

	if cfg.ControlAddr != "" {
		controlServer := control.NewServer(p, logger)
		go func() {
			slog.Info("control channel listening", slog.String("addr", cfg.ControlAddr))
			if err := http.ListenAndServe(cfg.ControlAddr, controlServer); err != nil {
				slog.Error("control channel exited", "error", err)
			}
		}()
	}

	if err := p.Start(); err != nil {
		slog.Error("proxy exited", "error", err)
		os.Exit(1)
	}
}

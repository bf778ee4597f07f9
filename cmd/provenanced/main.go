// Command provenanced hosts the optional read-only debug HTTP surface for
// the provenance enforcement core. It is not the core's primary
// integration point: a host embeds pkg/enforcement.Driver directly and
// calls its lifecycle methods from its own agent loop. This binary exists
// for operators who want the /sessions/{id}/graph and /watermark snapshot
// endpoints available without writing a Go host themselves.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/openclaw/provenance-core/pkg/approval"
	"github.com/openclaw/provenance-core/pkg/config"
	"github.com/openclaw/provenance-core/pkg/enforcement"
	"github.com/openclaw/provenance-core/pkg/httpapi"
	"github.com/openclaw/provenance-core/pkg/logging"
	"github.com/openclaw/provenance-core/pkg/policy"
	"github.com/openclaw/provenance-core/pkg/provenance"
	"github.com/openclaw/provenance-core/pkg/watermark"
)

func main() {
	configPath := flag.String("config", "provenance.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if !cfg.HTTPDebug.Enabled {
		log.Fatal("http_debug.enabled is false; nothing to serve")
	}

	workspaceDir := config.ResolveWorkspaceDir(cfg)
	wm, err := watermark.Open(workspaceDir)
	if err != nil {
		log.Fatalf("opening watermark store: %v", err)
	}

	logger, err := logging.NewLogger(filepath.Join(workspaceDir, ".provenance", "logs"), "provenanced")
	if err != nil {
		log.Fatalf("opening logger: %v", err)
	}
	defer logger.Close()

	policyCfg, warnings := policy.BuildPolicyConfig(cfg.PolicyInput())
	for _, w := range warnings {
		log.Printf("policy config warning: %s", w)
	}

	driver := enforcement.New(
		policyCfg,
		cfg.ToolTrustTable(),
		wm,
		approval.NewStore(cfg.ApprovalTTLSeconds),
		provenance.NewArchive(cfg.MaxCompletedGraphs),
		logger,
		cfg.DeveloperMode,
	)

	driver.OnStartup(true)

	server := httpapi.New(driver, wm)
	log.Printf("serving debug snapshot API on %s", cfg.HTTPDebug.Addr)
	if err := http.ListenAndServe(cfg.HTTPDebug.Addr, server); err != nil {
		log.Fatal(fmt.Errorf("http server: %w", err))
	}
}

// Copyright 2025 Certen Protocol
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	dbm "github.com/cometbft/cometbft-db"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/nodalchain/baseapp/pkg/audit"
	"github.com/nodalchain/baseapp/pkg/baseapp"
	"github.com/nodalchain/baseapp/pkg/config"
	"github.com/nodalchain/baseapp/pkg/gas"
	"github.com/nodalchain/baseapp/pkg/kvdb"
	"github.com/nodalchain/baseapp/pkg/ledger"
	"github.com/nodalchain/baseapp/pkg/merkle"
	"github.com/nodalchain/baseapp/pkg/metrics"
	"github.com/nodalchain/baseapp/pkg/node"
	"github.com/nodalchain/baseapp/pkg/params"

	"github.com/nodalchain/baseapp/x/auth"
	"github.com/nodalchain/baseapp/x/bank"
	"github.com/nodalchain/baseapp/x/ibcclient"
	"github.com/nodalchain/baseapp/x/stubs"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("starting chaind")

	var (
		homeDir     = flag.String("home", "", "Node home directory (overrides CHAIND_HOME env var)")
		validatorID = flag.String("validator-id", "", "Validator ID (overrides VALIDATOR_ID env var)")
		showHelp    = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if *homeDir != "" {
		cfg.HomeDir = *homeDir
	}
	if *validatorID != "" {
		cfg.ValidatorID = *validatorID
	}
	if err := cfg.ValidateForDevelopment(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := node.EnsureHomeDir(cfg.HomeDir); err != nil {
		log.Fatalf("prepare home directory: %v", err)
	}

	collector := metrics.NewCollector()
	app, err := buildApp(cfg, collector)
	if err != nil {
		log.Fatalf("build application: %v", err)
	}

	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			log.Printf("metrics listening on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	var auditClient *audit.Client
	if cfg.AuditEnabled {
		auditClient, err = audit.NewClient(cfg.AuditDatabaseURL)
		if err != nil {
			log.Fatalf("connect audit database: %v", err)
		}
		if err := auditClient.MigrateUp(context.Background()); err != nil {
			log.Fatalf("apply audit migrations: %v", err)
		}
		defer auditClient.Close()
	}

	adapter := node.NewAdapter(app)
	if auditClient != nil {
		adapter.SetAuditLog(auditClient)
	}
	cometCfg := node.DefaultConfig(cfg.HomeDir, cfg.ValidatorID, cfg.P2PPort, cfg.RPCPort)
	engine, err := node.NewEngine(cometCfg, adapter, cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)))
	if err != nil {
		log.Fatalf("create consensus engine: %v", err)
	}
	if err := engine.Start(); err != nil {
		log.Fatalf("start consensus engine: %v", err)
	}
	log.Printf("chaind node %s running (p2p=%d rpc=%d)", engine.NodeID(), cfg.P2PPort, cfg.RPCPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down chaind")
	if err := engine.Stop(); err != nil {
		log.Printf("stop consensus engine: %v", err)
	}
}

// buildApp wires the multi-store, module registry, ante pipeline, and
// ABCI handler from cfg, handing the finished application to the caller
// to bind to the consensus engine.
func buildApp(cfg *config.Config, collector *metrics.Collector) (*baseapp.App, error) {
	dataDir := filepath.Join(cfg.HomeDir, "data")
	stores := ledger.NewMultiStore()

	for _, name := range []string{auth.StoreKey, bank.StoreKey, ibcclient.StoreKey,
		stubs.StakingStoreKey, stubs.GovernanceStoreKey, stubs.DistributionStoreKey,
		stubs.SlashingStoreKey, stubs.EvidenceStoreKey, stubs.MintStoreKey, stubs.UpgradeStoreKey} {
		backend, err := dbm.NewGoLevelDB(name, dataDir)
		if err != nil {
			return nil, err
		}
		ndb, err := kvdb.NewNodeDB(backend, 10_000)
		if err != nil {
			return nil, err
		}
		ndb.SetMetrics(collector)
		stores.Register(ledger.NewBank(name, merkle.NewTree(ndb)))
	}

	modules := baseapp.NewModuleRegistry()
	moduleAccounts := baseapp.NewAccountRegistry()

	authKeeper := auth.NewKeeper()
	authModule := auth.NewModule(authKeeper)
	modules.Register(auth.StoreKey, "", authModule)

	bankKeeper := bank.NewKeeper(moduleAccounts)
	bankModule := bank.NewModule(bankKeeper, modules)
	modules.Register(bank.StoreKey, "bank/send", bankModule)

	ibcKeeper := ibcclient.NewKeeper()
	ibcModule := ibcclient.NewModule(ibcKeeper, modules)
	modules.Register(ibcclient.StoreKey, "ibcclient/register", ibcModule)

	modules.Register(stubs.StakingStoreKey, "", stubs.NewStaking())
	modules.Register(stubs.GovernanceStoreKey, "", stubs.NewGovernance())
	modules.Register(stubs.DistributionStoreKey, "", stubs.NewDistribution())
	modules.Register(stubs.SlashingStoreKey, "", stubs.NewSlashing())
	modules.Register(stubs.EvidenceStoreKey, "", stubs.NewEvidence())
	modules.Register(stubs.MintStoreKey, "", stubs.NewMint())
	modules.Register(stubs.UpgradeStoreKey, "", stubs.NewUpgrade())

	paramsBackend, err := dbm.NewGoLevelDB("params", dataDir)
	if err != nil {
		return nil, err
	}
	paramsNdb, err := kvdb.NewNodeDB(paramsBackend, 1_000)
	if err != nil {
		return nil, err
	}
	paramsBank := ledger.NewBank("params", merkle.NewTree(paramsNdb))
	stores.Register(paramsBank)
	anteSubspace := params.NewSubspace("ante", paramsBank)

	wantAnte := baseapp.AnteParamsSchema{Params: baseapp.AnteParams{
		MaxTxBytes:        1 << 20,
		MaxMemoCharacters: 256,
		MinGasPrices:      []baseapp.Coin{{Denom: cfg.MinGasPriceDenom, Amount: cfg.DefaultGasPrice}},
		TxSigLimit:        8,
		MinGasLimit:       1000,
	}}
	if err := anteSubspace.ParamsSet(wantAnte); err != nil {
		return nil, err
	}
	anteSchema, err := anteSubspace.Params(wantAnte)
	if err != nil {
		return nil, err
	}
	anteParams := anteSchema.(baseapp.AnteParamsSchema).Params

	ante := baseapp.NewAnteHandler(anteParams, authKeeper, bankKeeper, moduleAccounts)
	gasCfg := gas.DefaultConfig()

	app := baseapp.NewApp(stores, modules, ante, moduleAccounts, gasCfg)
	app.SetMetrics(collector)
	return app, nil
}

func printHelp() {
	log.Println("chaind: a single-node ABCI application for the nodalchain baseapp framework")
	flag.PrintDefaults()
}

package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/pmork/gatekeep/internal/authkeys"
	"github.com/pmork/gatekeep/internal/checkers"
	"github.com/pmork/gatekeep/internal/config"
	"github.com/pmork/gatekeep/internal/db"
	"github.com/pmork/gatekeep/internal/keystore"
	"github.com/pmork/gatekeep/internal/passhash"
	"github.com/pmork/gatekeep/internal/policy"
	"github.com/pmork/gatekeep/internal/privs"
	"github.com/pmork/gatekeep/internal/server"
	"github.com/pmork/gatekeep/internal/userdb"
)

func main() {
	configPath := flag.String("config", "gatekeep.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Paths.Data, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	id := privs.OS()
	accounts := userdb.Open(cfg.Paths.PasswdFile, cfg.Paths.ShadowFile, id)

	agg := checkers.NewAggregator()

	if slices.Contains(cfg.Auth.Methods, "password") {
		pc := checkers.NewPasswordChecker(accounts)
		pc.Sentinels = cfg.Auth.PasswordSentinels
		if cfg.Auth.SuFallback {
			hv := &passhash.HostVerifier{}
			pc.HostFallback = hv.Verify
		}
		agg.Register(pc)
	}

	if slices.Contains(cfg.Auth.Methods, "publickey") {
		var sources authkeys.Multi
		for _, name := range cfg.Auth.KeySources {
			switch name {
			case "unix":
				sources = append(sources, authkeys.NewUnixUserKeys(accounts, id))
			case "files":
				sources = append(sources, authkeys.NewFilesMapping(cfg.Auth.KeyFiles))
			case "store":
				database, err := db.Open(cfg.Paths.Database)
				if err != nil {
					log.Fatalf("Failed to open database: %v", err)
				}
				defer database.Close()
				log.Printf("Key store opened: %s", cfg.Paths.Database)
				sources = append(sources, keystore.NewRepo(database.DB))
			default:
				log.Fatalf("Unknown key source %q", name)
			}
		}
		agg.Register(checkers.NewPublicKeyChecker(sources))
	}

	if len(agg.Kinds()) == 0 {
		log.Fatalf("No authentication methods enabled")
	}

	if cfg.Auth.PolicyScript != "" {
		pol, err := policy.Load(cfg.Auth.PolicyScript)
		if err != nil {
			log.Fatalf("Failed to load policy script: %v", err)
		}
		defer pol.Close()
		agg.AreDone = pol.Satisfied
		log.Printf("Loaded policy script: %s", cfg.Auth.PolicyScript)
	} else if cfg.Auth.RequireAllMethods {
		agg.RequireAllKinds()
	}

	srv, err := server.New(cfg.Server.SSHPort, cfg.Server.HostKeyPath, agg)
	if err != nil {
		log.Fatalf("Failed to create SSH server: %v", err)
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Fatalf("SSH server error: %v", err)
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Health server error: %v", err)
		}
	}()

	fmt.Println("\ngatekeep is running")
	fmt.Printf("  SSH:     port %d\n", cfg.Server.SSHPort)
	fmt.Printf("  Health:  port %d\n", cfg.Server.HealthPort)
	fmt.Printf("  Methods: %v\n", cfg.Auth.Methods)
	fmt.Println("\nPress Ctrl+C to shut down.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Printf("Received signal %v, shutting down...", sig)
}

// Command mintix serves the ticket relay API.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/R3E-Network/mintix/internal/app/runtime"
	"github.com/R3E-Network/mintix/internal/config"
)

func main() {
	addr := flag.String("addr", "", "listen address (host:port), overrides HOST and PORT")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		host, port, err := net.SplitHostPort(*addr)
		if err != nil {
			log.Fatalf("invalid -addr %q: %v", *addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			log.Fatalf("invalid -addr port %q: %v", port, err)
		}
		cfg.Server.Host, cfg.Server.Port = host, p
	}

	if *migrateOnly {
		if err := runtime.Migrate(cfg.Database); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Printf("migrations applied")
		return
	}

	application, err := runtime.NewApplication(cfg)
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)
	if err := application.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if runErr != nil {
		log.Fatalf("server error: %v", runErr)
	}
}

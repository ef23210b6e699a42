package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"example.com/clocksim/internal/cluster"
	"example.com/clocksim/internal/config"
	"example.com/clocksim/internal/httpapi"
)

func mustGetEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func main() {
	defID, err := strconv.Atoi(mustGetEnv("CLOCKSIM_ID", "-1"))
	if err != nil {
		log.Fatalf("CLOCKSIM_ID: %v", err)
	}
	id := flag.Int("id", defID, "id of the vm to run {0, ..., n-1}")
	all := flag.Bool("all", false, "run every configured vm in this process")
	cfgPath := flag.String("config", mustGetEnv("CLOCKSIM_CONFIG", ""), "YAML config file")
	httpAddr := flag.String("http", "", "inspection API address, e.g. :8081")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if !*all && (*id < 0 || *id >= cfg.NumVMs()) {
		log.Fatalf("need -id in [0, %d) or -all", cfg.NumVMs())
	}

	gm := cluster.NewManager(cfg)
	defer gm.Shutdown()
	if *all {
		err = gm.CreateAll()
	} else {
		_, err = gm.Create(*id)
	}
	if err != nil {
		log.Fatalf("vm: %v", err)
	}
	log.Printf("[INFO] %d vm(s) configured, nominal duration %v (not enforced)", len(gm.ListIDs()), cfg.Duration)

	if cfg.HTTPAddr != "" {
		api := httpapi.New(gm, cfg)
		go func() {
			log.Printf("HTTP listen on %s", cfg.HTTPAddr)
			if err := http.ListenAndServe(cfg.HTTPAddr, api.Router()); err != nil {
				log.Printf("[WARN] http: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := gm.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		// a failed log write leaves no record of what the vm does next
		gm.Shutdown()
		log.Fatalf("vm: %v", err)
	}
}

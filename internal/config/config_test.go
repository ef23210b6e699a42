package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestNeighbors(t *testing.T) {
	cfg := Default()
	first, second, err := cfg.Neighbors(2)
	if err != nil {
		t.Fatal(err)
	}
	if first != "localhost:65443" || second != "localhost:65442" {
		t.Fatalf("unexpected neighbors %s, %s", first, second)
	}
	if _, _, err := cfg.Neighbors(3); err == nil {
		t.Fatal("expected error for id outside the port table")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	body := "host: 127.0.0.1\nports: [7001, 7002]\nmax_clock_speed: 3\nduration: 5s\nhttp_addr: \":8081\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "127.0.0.1" || len(cfg.Ports) != 2 || cfg.MaxClockSpeed != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Duration != 5*time.Second {
		t.Fatalf("duration %v", cfg.Duration)
	}
	// unset fields keep their defaults
	if cfg.MaxActions != 10 || cfg.MinClockSpeed != 1 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("http addr %q", cfg.HTTPAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CLOCKSIM_PORTS", "9001, 9002,9003,9004")
	t.Setenv("CLOCKSIM_MAX_ACTIONS", "20")
	t.Setenv("CLOCKSIM_SEED", "99")
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.NumVMs() != 4 || cfg.Ports[1] != 9002 || cfg.MaxActions != 20 || cfg.Seed != 99 {
		t.Fatalf("env not applied: %+v", cfg)
	}

	t.Setenv("CLOCKSIM_MAX_ACTIONS", "many")
	if err := cfg.ApplyEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"no ports":       func(c *Config) { c.Ports = nil },
		"duplicate port": func(c *Config) { c.Ports = []int{1000, 1000} },
		"speed range":    func(c *Config) { c.MinClockSpeed, c.MaxClockSpeed = 4, 2 },
		"zero speed":     func(c *Config) { c.MinClockSpeed = 0 },
		"no actions":     func(c *Config) { c.MaxActions = 0 },
		"http addr":      func(c *Config) { c.HTTPAddr = "8080" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is built once at startup and handed to every runtime.
type Config struct {
	Host  string `json:"host" yaml:"host"`
	Ports []int  `json:"ports" yaml:"ports"` // listening port per VM id

	MinClockSpeed int `json:"min_clock_speed" yaml:"min_clock_speed"`
	MaxClockSpeed int `json:"max_clock_speed" yaml:"max_clock_speed"`
	MaxActions    int `json:"max_actions" yaml:"max_actions"`

	// Duration is reported but never enforced: a VM runs until it is killed.
	Duration time.Duration `json:"duration" yaml:"duration"`

	StartupDelay time.Duration `json:"startup_delay" yaml:"startup_delay"`
	PollWindow   time.Duration `json:"poll_window" yaml:"poll_window"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`

	LogDir   string `json:"log_dir" yaml:"log_dir"`
	DataDir  string `json:"data_dir" yaml:"data_dir"`   // bbolt mirror; empty disables it
	HTTPAddr string `json:"http_addr" yaml:"http_addr"` // inspection API; empty disables it

	Seed int64 `json:"seed" yaml:"seed"` // 0 uses the per-vm rngstream
}

func Default() Config {
	return Config{
		Host:          "localhost",
		Ports:         []int{65443, 65442, 65441},
		MinClockSpeed: 1,
		MaxClockSpeed: 6,
		MaxActions:    10,
		Duration:      60 * time.Second,
		StartupDelay:  time.Second,
		PollWindow:    time.Millisecond,
		DialTimeout:   2 * time.Second,
		LogDir:        "logs",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func getEnv(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// ApplyEnv overrides fields from CLOCKSIM_* variables.
func (c *Config) ApplyEnv() error {
	if v, ok := getEnv("CLOCKSIM_HOST"); ok {
		c.Host = v
	}
	if v, ok := getEnv("CLOCKSIM_PORTS"); ok {
		ports, err := parseInts(v)
		if err != nil {
			return fmt.Errorf("CLOCKSIM_PORTS: %w", err)
		}
		c.Ports = ports
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"CLOCKSIM_MIN_CLOCK_SPEED", &c.MinClockSpeed},
		{"CLOCKSIM_MAX_CLOCK_SPEED", &c.MaxClockSpeed},
		{"CLOCKSIM_MAX_ACTIONS", &c.MaxActions},
	}
	for _, e := range ints {
		if v, ok := getEnv(e.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}
	if v, ok := getEnv("CLOCKSIM_SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CLOCKSIM_SEED: %w", err)
		}
		c.Seed = n
	}
	if v, ok := getEnv("CLOCKSIM_DURATION"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CLOCKSIM_DURATION: %w", err)
		}
		c.Duration = d
	}
	if v, ok := getEnv("CLOCKSIM_LOG_DIR"); ok {
		c.LogDir = v
	}
	if v, ok := getEnv("CLOCKSIM_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := getEnv("CLOCKSIM_HTTP_ADDR"); ok {
		c.HTTPAddr = v
	}
	return nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if len(c.Ports) == 0 {
		return errors.New("at least one port is required")
	}
	seen := make(map[int]bool, len(c.Ports))
	for _, p := range c.Ports {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("port %d out of range", p)
		}
		if seen[p] {
			return fmt.Errorf("port %d assigned twice", p)
		}
		seen[p] = true
	}
	if c.MinClockSpeed < 1 || c.MaxClockSpeed < c.MinClockSpeed {
		return fmt.Errorf("invalid clock speed range [%d, %d]", c.MinClockSpeed, c.MaxClockSpeed)
	}
	if c.MaxActions < 1 {
		return fmt.Errorf("max_actions must be >= 1, got %d", c.MaxActions)
	}
	if c.LogDir == "" {
		return errors.New("log_dir is required")
	}
	if c.HTTPAddr != "" {
		if _, _, err := net.SplitHostPort(c.HTTPAddr); err != nil {
			return fmt.Errorf("http_addr: %w", err)
		}
	}
	return nil
}

func (c Config) NumVMs() int { return len(c.Ports) }

func (c Config) checkID(id int) error {
	if id < 0 || id >= len(c.Ports) {
		return fmt.Errorf("vm id %d outside [0, %d)", id, len(c.Ports))
	}
	return nil
}

// Addr is the listening endpoint of vm id.
func (c Config) Addr(id int) (string, error) {
	if err := c.checkID(id); err != nil {
		return "", err
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Ports[id])), nil
}

// Neighbors returns the endpoints of (id+1) mod N and (id+2) mod N.
func (c Config) Neighbors(id int) (first, second string, err error) {
	if err = c.checkID(id); err != nil {
		return "", "", err
	}
	n := len(c.Ports)
	first, _ = c.Addr((id + 1) % n)
	second, _ = c.Addr((id + 2) % n)
	return first, second, nil
}

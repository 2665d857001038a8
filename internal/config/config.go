// Package config loads process configuration from flags, environment
// variables and an optional YAML file, and builds the process logger.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ringstore/internal/ring"
)

var (
	ErrInvalidSlots  = errors.New("slots must be positive")
	ErrDuplicatePeer = errors.New("duplicate peer")
	ErrNodeIDMissing = errors.New("node id is required")
)

// Peer represents a storage node in the cluster.
type Peer struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr"`
}

// Config holds the process configuration.
type Config struct {
	NodeID     string `yaml:"nodeId"`
	ListenAddr string `yaml:"listen"`
	AdminAddr  string `yaml:"admin"`
	Peers      []Peer `yaml:"peers"`
	Slots      int    `yaml:"slots"`
	LogLevel   string `yaml:"logLevel"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		ListenAddr: ":7000",
		AdminAddr:  ":8080",
		Peers:      []Peer{},
		Slots:      ring.DefaultSlots,
		LogLevel:   "info",
	}
}

// Load builds a Config from command line args. Precedence, lowest first:
// defaults, the --config YAML file, RINGSTORE_* environment variables,
// explicitly set flags.
func Load(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "path to a YAML config file")
		nodeID     = fs.String("node-id", "", "storage node ID")
		listen     = fs.String("listen", "", "storage node gRPC listen address")
		admin      = fs.String("admin", "", "admin HTTP listen address")
		peers      = fs.String("peers", "", "storage nodes as id=addr,id=addr")
		slots      = fs.Int("slots", 0, "ring hash space size")
		logLevel   = fs.String("log-level", "", "debug, info, warn or error")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *configPath != "" {
		fileCfg, err := LoadFile(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "node-id":
			cfg.NodeID = *nodeID
		case "listen":
			cfg.ListenAddr = *listen
		case "admin":
			cfg.AdminAddr = *admin
		case "peers":
			p, err := ParsePeers(*peers)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Peers = p
		case "slots":
			cfg.Slots = *slots
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}
	return cfg, nil
}

// LoadFile reads a YAML config file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("RINGSTORE_NODE_ID"); v != "" {
		c.NodeID = v
	}
	if v := getenv("RINGSTORE_LISTEN"); v != "" {
		c.ListenAddr = v
	}
	if v := getenv("RINGSTORE_ADMIN"); v != "" {
		c.AdminAddr = v
	}
	if v := getenv("RINGSTORE_PEERS"); v != "" {
		p, err := ParsePeers(v)
		if err != nil {
			return fmt.Errorf("RINGSTORE_PEERS: %w", err)
		}
		c.Peers = p
	}
	if v := getenv("RINGSTORE_SLOTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RINGSTORE_SLOTS: %w", err)
		}
		c.Slots = n
	}
	if v := getenv("RINGSTORE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the settings shared by every binary.
func (c *Config) Validate() error {
	if c.Slots <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSlots, c.Slots)
	}
	ids := make(map[string]bool, len(c.Peers))
	addrs := make(map[string]bool, len(c.Peers))
	for _, p := range c.Peers {
		if ids[p.ID] {
			return fmt.Errorf("%w: id %s", ErrDuplicatePeer, p.ID)
		}
		if addrs[p.Addr] {
			return fmt.Errorf("%w: addr %s", ErrDuplicatePeer, p.Addr)
		}
		ids[p.ID] = true
		addrs[p.Addr] = true
	}
	return nil
}

// ParsePeers parses a comma-separated list of peers in the format:
// "id1=addr1,id2=addr2,id3=addr3"
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		id := strings.TrimSpace(kv[0])
		addr := strings.TrimSpace(kv[1])

		if id == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		peers = append(peers, Peer{
			ID:   id,
			Addr: addr,
		})
	}

	return peers, nil
}

// RingNodes converts config peers into ring nodes, in configured order.
func (c *Config) RingNodes() []ring.Node {
	nodes := make([]ring.Node, 0, len(c.Peers))
	for _, peer := range c.Peers {
		nodes = append(nodes, ring.Node{
			ID:   peer.ID,
			Addr: peer.Addr,
		})
	}
	return nodes
}

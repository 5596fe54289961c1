// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/internal/log"
	"github.com/btcsuite/msgpool/internal/version"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/sampleconfig"
	"github.com/btcsuite/msgpool/wire"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "msgpoold.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "msgpoold.log"
	defaultWSListen       = "127.0.0.1:21350"
	defaultMetricsListen  = "127.0.0.1:21351"
	defaultSigCacheSize   = 100000
)

var (
	defaultHomeDir    = btcutil.AppDataDir("msgpoold", false)
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// config defines the configuration options for msgpoold.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion           bool          `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile            string        `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir                string        `long:"logdir" description:"Directory to log output"`
	DebugLevel            string        `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	TestNet               bool          `long:"testnet" description:"Use the test network"`
	SimNet                bool          `long:"simnet" description:"Use the simulation test network"`
	Listeners             []string      `long:"listen" description:"Add a multiaddr to listen for peers on (default all interfaces on the port of the network)"`
	AddPeers              []string      `short:"a" long:"addpeer" description:"Add a peer multiaddr to connect with at startup"`
	NoBootstrap           bool          `long:"nobootstrap" description:"Do not connect to the bootstrap peers of the network"`
	WSListen              string        `long:"wslisten" description:"Interface/port to serve pending message notifications on"`
	DisableWS             bool          `long:"nows" description:"Disable the websocket notification server"`
	WSMaxClients          int           `long:"wsmaxclients" description:"Max number of websocket clients"`
	MetricsListen         string        `long:"metricslisten" description:"Interface/port to serve prometheus metrics on"`
	DisableMetrics        bool          `long:"nometrics" description:"Disable the metrics endpoint"`
	Generate              bool          `long:"generate" description:"Produce blocks at the block delay of the network (simnet only)"`
	Fund                  []string      `long:"fund" description:"Fund an account in the genesis state, as <address>:<amount>"`
	MaxPendingPerSender   int           `long:"maxpendingpersender" description:"Max number of pending messages per sender for local submissions"`
	MaxUntrustedPerSender int           `long:"maxuntrustedpersender" description:"Max number of pending messages per sender for messages from the network"`
	MaxPoolSize           int           `long:"maxpoolsize" description:"Max number of pending messages in the pool"`
	ReplaceByFeePercent   uint64        `long:"rbfpercent" description:"Minimum gas premium increase in percent for a message to replace another"`
	RepublishInterval     time.Duration `long:"republishinterval" description:"How often pending local messages are announced again (default depends on the network)"`
	SigCacheMaxSize       uint          `long:"sigcachemaxsize" description:"The maximum number of entries in the signature verification cache"`

	params *chaincfg.Params
	alloc  map[address.Address]wire.TokenAmount
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// createDefaultConfigFile writes the sample configuration to destPath.
func createDefaultConfigFile(destPath string) error {
	err := os.MkdirAll(filepath.Dir(destPath), 0700)
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte(sampleconfig.FileContents), 0600)
}

// parseFunding parses <address>:<amount> genesis allocations.
func parseFunding(entries []string) (map[address.Address]wire.TokenAmount, error) {
	alloc := make(map[address.Address]wire.TokenAmount, len(entries))
	for _, entry := range entries {
		addrStr, amountStr, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("funding entry [%v] is not of the "+
				"form <address>:<amount>", entry)
		}
		addr, err := address.NewFromString(addrStr)
		if err != nil {
			return nil, fmt.Errorf("funding entry [%v]: %w", entry, err)
		}
		var amount wire.TokenAmount
		if err := amount.UnmarshalText([]byte(amountStr)); err != nil {
			return nil, fmt.Errorf("funding entry [%v]: %w", entry, err)
		}
		alloc[addr] = alloc[addr].Add(amount)
	}
	return alloc, nil
}

// poolPolicy returns the pool policy with the overrides of the config
// applied.
func (cfg *config) poolPolicy() mempool.Policy {
	policy := mempool.DefaultPolicy()
	if cfg.MaxPendingPerSender > 0 {
		policy.MaxPendingPerSender = cfg.MaxPendingPerSender
	}
	if cfg.MaxUntrustedPerSender > 0 {
		policy.MaxUntrustedPerSender = cfg.MaxUntrustedPerSender
	}
	if cfg.MaxPoolSize > 0 {
		policy.MaxPoolSize = cfg.MaxPoolSize
	}
	if cfg.ReplaceByFeePercent > 0 {
		policy.ReplaceByFeePercent = cfg.ReplaceByFeePercent
	}
	policy.RepublishInterval = cfg.RepublishInterval
	return policy
}

// listenAddrs returns the multiaddrs to listen for peers on.
func (cfg *config) listenAddrs() []string {
	if len(cfg.Listeners) > 0 {
		return cfg.Listeners
	}
	return []string{"/ip4/0.0.0.0/tcp/" + cfg.params.DefaultPort}
}

// peerAddrs returns the multiaddrs of the peers to connect with at startup.
func (cfg *config) peerAddrs() []string {
	peers := append([]string(nil), cfg.AddPeers...)
	if !cfg.NoBootstrap {
		peers = append(peers, cfg.params.BootstrapPeers...)
	}
	return peers
}

// errEarlyExit is returned by loadConfig when the requested information
// was printed and the daemon should exit.
var errEarlyExit = errors.New("early exit")

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in msgpoold functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take
// precedence.
func loadConfig(args []string) (*config, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile:      defaultConfigFile,
		DebugLevel:      defaultLogLevel,
		LogDir:          defaultLogDir,
		WSListen:        defaultWSListen,
		MetricsListen:   defaultMetricsListen,
		SigCacheMaxSize: defaultSigCacheSize,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			return nil, nil, errEarlyExit
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Println(version.AppName, "version", version.String())
		return nil, nil, errEarlyExit
	}

	// Special show command to list supported subsystems and exit.
	if preCfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", log.SupportedSubsystems())
		return nil, nil, errEarlyExit
	}

	// Create a default config file when one does not exist and the user
	// did not specify an override.
	if preCfg.ConfigFile == defaultConfigFile && !fileExists(defaultConfigFile) {
		err := createDefaultConfigFile(defaultConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a default config "+
				"file: %v\n", err)
		}
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n", err)
			return nil, nil, err
		}
		// A missing default config file is not an error.
		if preCfg.ConfigFile != defaultConfigFile {
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	// Multiple networks can't be selected simultaneously.
	funcName := "loadConfig"
	numNets := 0
	cfg.params = &chaincfg.MainNetParams
	if cfg.TestNet {
		numNets++
		cfg.params = &chaincfg.TestNetParams
	}
	if cfg.SimNet {
		numNets++
		cfg.params = &chaincfg.SimNetParams
	}
	if numNets > 1 {
		str := "%s: The testnet and simnet params can't be used " +
			"together -- choose one of the two"
		return nil, nil, fmt.Errorf(str, funcName)
	}

	// Block production is only available where the network supports it.
	if cfg.Generate && !cfg.params.GenerateSupported {
		str := "%s: block generation is not supported on the %s network"
		return nil, nil, fmt.Errorf(str, funcName, cfg.params.Name)
	}

	// Parse, validate, and set debug log level(s).
	if err := log.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", funcName, err)
	}

	cfg.alloc, err = parseFunding(cfg.Fund)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", funcName, err)
	}

	if cfg.RepublishInterval < 0 {
		str := "%s: the republishinterval option may not be negative " +
			"-- parsed [%v]"
		return nil, nil, fmt.Errorf(str, funcName, cfg.RepublishInterval)
	}

	// Namespace the log directory per network.
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.params.Name)

	return &cfg, remainingArgs, nil
}

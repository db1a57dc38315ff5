// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cnchain/cnd/domain/consensus"
	"github.com/cnchain/cnd/infrastructure/logger"
	"github.com/cnchain/cnd/util"
	"github.com/cnchain/cnd/version"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename   = "cnd.conf"
	defaultDataDirname      = "data"
	defaultLogLevel         = "info"
	defaultLogDirname       = "logs"
	defaultLogFilename      = "cnd.log"
	defaultErrLogFilename   = "cnd_err.log"
	defaultSegmentStorage   = string(consensus.SegmentStorageLevelDB)
	defaultSegmentCacheSize = 1000
	defaultDatabaseCacheMiB = 256
	minDatabaseCacheMiB     = 8
)

var (
	// DefaultAppDir is the default home directory for cnd.
	DefaultAppDir = util.AppDataDir("cnd", false)

	defaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)
)

// Flags defines the configuration options for cnd.
//
// See LoadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion             bool          `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile              string        `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDir                  string        `short:"b" long:"appdir" description:"Directory to store data"`
	LogDir                  string        `long:"logdir" description:"Directory to log output."`
	LogLevel                string        `short:"d" long:"loglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	SegmentStorage          string        `long:"segment-storage" choice:"memory" choice:"leveldb" description:"Backing storage of the chain segments"`
	SegmentCacheSize        int           `long:"segment-cache-size" description:"Number of recent block infos each persisted segment keeps in memory"`
	DatabaseCacheMiB        int           `long:"db-cache" description:"LevelDB block cache size in MiB"`
	PoolTransactionLifetime time.Duration `long:"pool-lifetime" description:"How long a transaction may stay in the pool. Valid time units are {s, m, h}. Defaults to the network's value"`
	PoolCleanInterval       time.Duration `long:"pool-clean-interval" description:"How often the pool evicts expired transactions. Valid time units are {s, m, h}"`
	NoCheckpoints           bool          `long:"no-checkpoints" description:"Validate every block in full, even below the last checkpoint"`
	MetricsListen           string        `long:"metrics-listen" description:"Serve prometheus metrics on this address (eg. 127.0.0.1:9110)"`
	Profile                 string        `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	NetworkFlags
}

// Config defines the configuration options for cnd.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	*Flags
	DataDir     string
	LogFile     string
	ErrLogFile  string
	showSubsyss bool
}

// ShowSubsystems returns whether --loglevel=show was requested.
func (cfg *Config) ShowSubsystems() bool {
	return cfg.showSubsyss
}

// ConsensusConfig builds the consensus configuration the flags select.
func (cfg *Config) ConsensusConfig() *consensus.Config {
	consensusConfig := consensus.DefaultConfig(cfg.NetParams())
	consensusConfig.SegmentStorage = consensus.SegmentStorage(cfg.SegmentStorage)
	consensusConfig.SegmentCacheSize = cfg.SegmentCacheSize
	consensusConfig.EnableCheckpoints = !cfg.NoCheckpoints
	if cfg.PoolTransactionLifetime != 0 {
		consensusConfig.PoolTransactionLifetime = cfg.PoolTransactionLifetime
	}
	if cfg.PoolCleanInterval != 0 {
		consensusConfig.PoolCleanInterval = cfg.PoolCleanInterval
	}
	return consensusConfig
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultAppDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func defaultFlags() *Flags {
	return &Flags{
		ConfigFile:       defaultConfigFile,
		LogLevel:         defaultLogLevel,
		AppDir:           DefaultAppDir,
		SegmentStorage:   defaultSegmentStorage,
		SegmentCacheSize: defaultSegmentCacheSize,
		DatabaseCacheMiB: defaultDatabaseCacheMiB,
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in cnd functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options. Command line options always take precedence.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	cfgFlags := defaultFlags()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := *cfgFlags
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, err
		}
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(cfgFlags, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %s\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
		if preCfg.ConfigFile != defaultConfigFile {
			return nil, errors.Wrapf(err, "config file %s", preCfg.ConfigFile)
		}
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); !ok || flagsErr.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, err
	}

	cfg := &Config{Flags: cfgFlags}
	err = cfg.ResolveNetwork(parser)
	if err != nil {
		return nil, err
	}

	funcName := "loadConfig"
	if cfg.DatabaseCacheMiB < minDatabaseCacheMiB {
		str := "%s: db-cache must be at least %d MiB, got %d"
		err := errors.Errorf(str, funcName, minDatabaseCacheMiB, cfg.DatabaseCacheMiB)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}
	if cfg.SegmentCacheSize <= 0 {
		str := "%s: segment-cache-size must be positive, got %d"
		err := errors.Errorf(str, funcName, cfg.SegmentCacheSize)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}
	if cfg.PoolTransactionLifetime < 0 || cfg.PoolCleanInterval < 0 {
		str := "%s: pool-lifetime and pool-clean-interval cannot be negative"
		err := errors.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	// Append the network type to the data and log directories so they
	// are "namespaced" per network.
	cfg.AppDir = cleanAndExpandPath(cfg.AppDir)
	cfg.DataDir = filepath.Join(cfg.AppDir, cfg.NetParams().Name, defaultDataDirname)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.AppDir, defaultLogDirname)
	}
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir), cfg.NetParams().Name)
	cfg.LogFile = filepath.Join(cfg.LogDir, defaultLogFilename)
	cfg.ErrLogFile = filepath.Join(cfg.LogDir, defaultErrLogFilename)

	// Special show command to list supported subsystems and exit.
	if cfg.LogLevel == "show" {
		cfg.showSubsyss = true
		return cfg, nil
	}

	// Parse, validate, and set debug log level(s).
	err = logger.ParseAndSetLogLevels(cfg.LogLevel)
	if err != nil {
		err := errors.Errorf("%s: %s", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	return cfg, nil
}

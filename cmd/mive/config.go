package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/ethereum/go-ethereum/node"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-mive/mive/internal/flags"
	"github.com/ethereum-mive/mive/internal/version"
	"github.com/ethereum-mive/mive/mive/miveconfig"
)

var configFileFlag = &cli.StringFlag{
	Name:     "config",
	Usage:    "TOML configuration file",
	Category: flags.MiscCategory,
}

// tomlSettings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// miveFullConfig is the top-level TOML document: a go-ethereum node.Config
// section (data dir, RPC endpoints) alongside the indexer's own
// miveconfig.Config section.
type miveFullConfig struct {
	Node node.Config
	Mive miveconfig.Config
}

func loadConfig(file string, cfg *miveFullConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

func defaultNodeConfig() node.Config {
	cfg := node.DefaultConfig
	cfg.Name = clientIdentifier
	cfg.Version = version.WithCommit()
	cfg.IPCPath = "mive.ipc"
	return cfg
}

// loadBaseConfig loads the full configuration from the config file named by
// configFileFlag, if any, then lets command-line flags override it.
func loadBaseConfig(ctx *cli.Context) miveFullConfig {
	cfg := miveFullConfig{
		Node: defaultNodeConfig(),
		Mive: miveconfig.Config{
			EthRpcUrl:         ethRpcUrlFlag.Value,
			StartAtBlock:      startAtBlockFlag.Value,
			MaxHistoryLength:  maxHistoryLengthFlag.Value,
			ChainPollInterval: chainPollIntervalFlag.Value,
		},
	}

	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			fatalf("%v", err)
		}
	}

	setNodeFlags(ctx, &cfg.Node)
	setMiveFlags(ctx, &cfg.Mive)
	return cfg
}

// makeConfigNode loads mive's configuration and creates a blank node
// instance to host the indexer service.
func makeConfigNode(ctx *cli.Context) (*node.Node, miveFullConfig) {
	cfg := loadBaseConfig(ctx)
	stack, err := node.New(&cfg.Node)
	if err != nil {
		fatalf("Failed to create the protocol stack: %v", err)
	}
	return stack, cfg
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

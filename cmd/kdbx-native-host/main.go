package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/spectralops/kdbx-native-host/internal/daemon"
	"github.com/spectralops/kdbx-native-host/internal/hostconfig"
	"github.com/spectralops/kdbx-native-host/internal/kdbx"
	"github.com/spectralops/kdbx-native-host/pkg/logging"
)

var CLI struct {
	LogLevel string `short:"l" help:"Application log level"`

	Serve struct {
	} `cmd help:"Run the native-messaging host, reading requests from stdin and writing responses to stdout" default:"1"`

	SetDatabase struct {
		Path string `arg name:"path" help:"Path to the .kdbx database file this host should operate on"`
	} `cmd help:"Configure which database file the host opens"`

	DeriveKey struct {
		Password      string `arg name:"password" help:"Password to derive a key from"`
		KdfParameters string `arg name:"kdf-parameters" help:"Compact base64 KDF parameters, as produced by duplicate-kdf-parameters"`
	} `cmd help:"Derive a key from a password and compact KDF parameters, for offline debugging"`

	Version struct {
	} `cmd aliases:"v" help:"Host version"`
}

var (
	version         = "dev"
	commit          = "none"
	date            = "unknown"
	defaultLogLevel = "error"
)

func main() {
	// A browser starts the host with the calling extension's origin
	// (chrome-extension://...) as the first argument: run the daemon then.
	if len(os.Args) > 1 && strings.Contains(os.Args[1], "://") {
		os.Args = []string{os.Args[0], "serve"}
	}
	ctx := kong.Parse(&CLI)

	logger := logging.GetRoot()
	if CLI.LogLevel != "" {
		defaultLogLevel = CLI.LogLevel
	}
	logger.SetLevel(defaultLogLevel)

	switch ctx.Command() {
	case "version":
		fmt.Printf("kdbx-native-host %v\n", version)
		fmt.Printf("Revision %v, date: %v\n", commit, date)
	case "set-database <path>":
		if err := hostconfig.SetDatabasePath(CLI.SetDatabase.Path); err != nil {
			logger.WithError(err).Fatal("could not save database path")
		}
	case "derive-key <password> <kdf-parameters>":
		key, consumed, err := kdbx.DeriveKeyFromCompact(CLI.DeriveKey.KdfParameters, CLI.DeriveKey.Password)
		if err != nil {
			logger.WithError(err).Fatal("could not derive key")
		}
		fmt.Printf("key: %s\n", base64.StdEncoding.EncodeToString(key))
		fmt.Printf("bytes consumed: %d\n", consumed)
	case "serve":
		if err := daemon.Run(os.Stdin, os.Stdout, logger); err != nil {
			logger.WithError(err).Fatal("native-messaging host exited with an error")
		}
	default:
		if err := daemon.Run(os.Stdin, os.Stdout, logger); err != nil {
			logger.WithError(err).Fatal("native-messaging host exited with an error")
		}
	}
}

package main

import (
	"github.com/Regdarim/arni-worker/internal/buildinfo"
	"github.com/Regdarim/arni-worker/internal/cli"
	"github.com/Regdarim/arni-worker/internal/logging"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	cli.Execute()
}

package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"proofofawesome/engine/actors"
)

func main() {
	// flags, AWESOME_* env vars and <rootDir>/config.yaml all land in one viper instance
	conf := viper.New()
	conf.SetEnvPrefix("awesome")
	conf.AutomaticEnv()
	actors.InitConfig(conf)
	actors.SetConfig(conf)
	if err := rootCommand(conf).Execute(); err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}
}

package actors

import (
	"os"

	"github.com/spf13/viper"
	"proofofawesome/engine/library"
)

// InitConfig sets up our Viper config object
func InitConfig(config *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		library.LogCLI(err.Error(), 1)
	}
	config.SetDefault("rootDir", homeDir+"/proofofawesome/")
	config.SetConfigType("yaml")
	config.SetConfigFile(config.GetString("rootDir") + "config.yaml")
	err = config.ReadInConfig()
	if err != nil {
		library.LogCLI(err.Error(), 4)
	}
	config.SetDefault("logLevel", 4)
	// "socket" talks to the server directly, "relay" goes through nostr relays
	config.SetDefault("transport", "socket")
	config.SetDefault("serverURL", "ws://127.0.0.1:3001/ws")
	config.SetDefault("relays", []string{"wss://nostr.688.org"})
	config.SetDefault("blockWindow", 4)
	config.SetDefault("addressCacheSize", 256)
	config.SetDefault("cashBalance", float64(0))
	config.SetDefault("resyncSpan", int64(100))
	// Create our working directory and config file if not exist
	initRootDir(config)
	if err := library.Touch(config.GetString("rootDir") + "config.yaml"); err != nil {
		library.LogCLI(err.Error(), 1)
	}
	err = config.WriteConfig()
	if err != nil {
		library.LogCLI(err.Error(), 1)
	}
	library.SetLogLevel(config.GetInt("logLevel"))
}

func initRootDir(conf *viper.Viper) {
	_, err := os.Stat(conf.GetString("rootDir"))
	if os.IsNotExist(err) {
		err = os.MkdirAll(conf.GetString("rootDir"), 0755)
		if err != nil {
			library.LogCLI(err, 1)
		}
	}
}

var conf *viper.Viper

func MakeOrGetConfig() *viper.Viper {
	if conf == nil {
		conf = viper.New()
	}
	return conf
}

func SetConfig(config *viper.Viper) {
	conf = config
}

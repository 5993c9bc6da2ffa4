package main

import (
	"flag"

	"github.com/go-fcnet/go-fcnet/lib/config"
	"github.com/go-fcnet/go-fcnet/lib/node"
	"github.com/go-fcnet/go-fcnet/lib/util/logger"
	"github.com/go-fcnet/go-fcnet/lib/util/signals"
)

var log = logger.GetLogger()

func main() {
	cfgFile := flag.String("config", "", "Path to the config file")
	flag.Parse()
	config.CfgFile = *cfgFile
	config.InitConfig()
	go signals.Handle()
	log.Debug("parsing fcnet configuration")
	log.Debug("starting up fcnet core")
	n, err := node.NewNode(config.NewSessionManagerConfigFromViper(), config.PrivateKey())
	if err == nil {
		signals.RegisterReloadHandler(func() {
			// TODO: reload config
		})
		signals.RegisterInterruptHandler(func() {
			n.Stop()
		})
		n.Start()
		n.Wait()
		n.Close()
	} else {
		log.Errorf("failed to create fcnet core: %s", err)
	}
}

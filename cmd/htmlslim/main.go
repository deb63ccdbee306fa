/*
This command provides an executable version of the proxy with the default
set of filters.

For the list of command line options, run:

	htmlslim -help

For details about the usage and extensibility of the proxy, please see the
documentation of the root htmlslim package.
*/
package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/htmlslim/htmlslim"
	"github.com/htmlslim/htmlslim/config"
)

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("error processing config: %v", err)
	}

	log.Fatal(htmlslim.Run(cfg.ToOptions()))
}

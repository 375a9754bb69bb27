package cmd

import (
	"github.com/MinusKelvin/pbr-gpu/log"
	"github.com/urfave/cli"
)

var logger = log.New("pbr")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}

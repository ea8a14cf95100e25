package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/garrison/internal/buildinfo"
	"github.com/dmitrijs2005/garrison/internal/server"
	"github.com/dmitrijs2005/garrison/internal/server/auth"
	"github.com/dmitrijs2005/garrison/internal/server/config"
)

// Usage:
//
//	server [flags]                 serve POST /sync
//	server token <device> [flags]  print a bearer token bound to <device>
func main() {

	cfg := config.LoadConfig()

	if len(os.Args) > 2 && os.Args[1] == "token" {
		tok, err := auth.GenerateToken(os.Args[2], os.Args[2], []byte(cfg.SecretKey), cfg.TokenValidityDuration)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(tok)
		return
	}

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}

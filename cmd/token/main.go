// Command token issues API access tokens for an owner. It reads the signing
// secret from the same configuration layers as the server (-c, -s).
//
//	token -owner archive-team -ttl 720h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/archivia/internal/flagx"
	"github.com/dmitrijs2005/archivia/internal/server/auth"
	"github.com/dmitrijs2005/archivia/internal/server/config"
)

func main() {

	cfg := config.LoadConfig()

	var ownerID string
	var ttl time.Duration

	fs := flag.NewFlagSet("token", flag.ExitOnError)
	fs.StringVar(&ownerID, "owner", "", "owner id the token is issued for")
	fs.DurationVar(&ttl, "ttl", cfg.AccessTokenValidityDuration, "token validity")
	_ = fs.Parse(flagx.OSArgs("-owner", "-ttl"))

	if ownerID == "" {
		fs.Usage()
		os.Exit(2)
	}

	token, err := auth.GenerateToken(ownerID, []byte(cfg.SecretKey), ttl)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println(token)

}

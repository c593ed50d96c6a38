// Command admintoken mints a bearer token for the admin endpoints.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	appMiddleware "github.com/markdave123-py/supplement-advisor/internal/api/middlewares"
	"github.com/markdave123-py/supplement-advisor/internal/config"
)

func main() {
	subject := flag.String("user", "admin", "user_id claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	token, err := appMiddleware.GenerateJWT(cfg.JWTSecret, *subject, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}

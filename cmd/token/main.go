// Command token issues operator tokens for the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"bluegreen-server/internal/auth"
	"bluegreen-server/internal/config"
)

func main() {
	subject := flag.String("sub", "", "operator name recorded as the actor of every operation")
	expiry := flag.Duration("exp", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "token: -sub is required")
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "token: JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := auth.IssueToken(*subject, cfg.JWTSecret, *expiry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}

package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/quantfin/papertrade/params"
	"github.com/quantfin/papertrade/pkg/auth"
)

// Dev utility: mint a bearer token for an account id, signed with the same
// secret the server verifies against.
//
// Usage:
//   mint-token -account demo -ttl 24h
//   curl -H "Authorization: Bearer $TOKEN" localhost:8080/api/v1/account
func main() {
	cfg := params.LoadFromEnv("")

	var (
		account = flag.String("account", "demo", "account id (token subject)")
		ttl     = flag.Duration("ttl", 24*time.Hour, "token lifetime")
		secret  = flag.String("secret", cfg.Auth.Secret, "signing secret (defaults to AUTH_SECRET)")
	)
	flag.Parse()

	token, err := auth.IssueToken(*secret, *account, *ttl)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}

	fmt.Println(token)
}

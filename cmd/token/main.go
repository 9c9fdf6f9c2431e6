// Command token mints a bearer token for local testing of the API.  The
// identity service issues real tokens; this tool signs one with the same
// JWT_SECRET the server verifies against.
//
//	go run ./cmd/token -owner 7 -role CUSTOMER
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/iliyamo/train-station/internal/middleware"
	"github.com/iliyamo/train-station/internal/utils"
)

func main() {
	_ = godotenv.Load()

	owner := flag.Uint64("owner", 1, "owner id placed in the sub claim")
	role := flag.String("role", middleware.RoleCustomer, "role claim: CUSTOMER or ADMIN")
	ttl := flag.Int("ttl", 60, "lifetime in minutes")
	flag.Parse()

	if *role != middleware.RoleCustomer && *role != middleware.RoleAdmin {
		log.Fatalf("unknown role %q", *role)
	}
	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *owner, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
}

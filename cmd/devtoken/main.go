// Command devtoken prints an access token signed with JWT_SECRET, for
// calling the session host in development without the booking API's login.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-booking-client/internal/utils"
)

func main() {
	_ = godotenv.Load()

	sub := flag.String("sub", "dev-user", "token subject (user id)")
	role := flag.String("role", "", "optional role claim")
	ttl := flag.Int("ttl", 60, "lifetime in minutes")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("missing required env var: JWT_SECRET")
	}
	tok, err := utils.NewAccessToken(secret, *sub, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format("2006-01-02 15:04:05 MST"))
}

package main

import (
	"fmt"
	"log"
	"os"

	"bid-broker/internal/auth"
	"bid-broker/internal/model"
)

// generateToken prints a signed JWT for local testing.
//
// Usage:
//
//	JWT_SECRET=dev-secret go run scripts/generate_token.go customer alice@example.com "Alice"
//	JWT_SECRET=dev-secret go run scripts/generate_token.go admin admin@example.com "Admin"
func main() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	if len(os.Args) < 3 {
		log.Fatalf("usage: %s <admin|customer> <email> [name]", os.Args[0])
	}

	role := model.Role(os.Args[1])
	if role != model.RoleAdmin && role != model.RoleCustomer {
		log.Fatalf("unknown role %q, expected admin or customer", os.Args[1])
	}

	email := os.Args[2]
	name := email
	if len(os.Args) > 3 {
		name = os.Args[3]
	}

	manager := auth.NewJWTManager(secret)
	token, err := manager.GenerateToken(email, name, role)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}

	fmt.Println(token)
}

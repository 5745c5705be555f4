package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// A .env next to the binary can set MONITORCTL_* variables during
	// development; absence is not an error
	_ = godotenv.Load()

	Execute()
}

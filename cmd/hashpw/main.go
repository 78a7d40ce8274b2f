// Command hashpw prints an argon2id hash for DOCREVIEW_REVIEWER_PASSWORD_HASH.
// The password is read from the first line of stdin.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/docreview-backend/pkg/config"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
	"github.com/angelmondragon/docreview-backend/pkg/security"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "hashpw", Output: os.Stderr})

	_ = godotenv.Load()

	var params config.PasswordConfig
	if err := envconfig.Process(config.EnvPrefix, &params); err != nil {
		logg.Error(ctx, "failed to load password config", err)
		os.Exit(1)
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		logg.Error(ctx, "failed to read password from stdin", err)
		os.Exit(1)
	}

	hash, err := security.HashPassword(strings.TrimRight(line, "\r\n"), params)
	if err != nil {
		logg.Error(ctx, "failed to hash password", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

package main

// @title           marketlink API
// @version         1.0
// @description     Marketplace credential lifecycle API. marketlink provisions, authorizes, refreshes and reports on OAuth credentials for Etsy, Joom, Shopify and eBay.

// @contact.name   Custodia Labs
// @contact.url    https://github.com/custodia-labs/marketlink/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Operator JWT. Format: "Bearer {token}"

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

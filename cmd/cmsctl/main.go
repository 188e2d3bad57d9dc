// Command cmsctl inspects list definitions without running the server.
//
// It supports:
//   - schema graphql: print the generated GraphQL schema as SDL
//   - schema sql: print CREATE TABLE statements for a SQL provider
//   - schema prisma: print the equivalent Prisma schema
//   - lists validate: check a list definitions file
//
// Usage:
//
//	cmsctl [--lists lists.yaml] <command>
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

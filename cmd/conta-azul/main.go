// Command conta-azul extracts Conta Azul accounts receivable into SQLite.
package main

import (
	"os"

	"github.com/bene2386/Conta-Azul/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// Command xsdnorm is a small demo CLI around the xsdnorm package, the
// spiritual analog of the teacher repository's examples/basic_usage.go
// wired up as a real command instead of an inline main().
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	Execute()
}

package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
)

func main() {
	log.SetHandler(cli.Default)
	log.SetLevel(log.InfoLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "dump":
		err = cmdDump(os.Args[2:])
	case "calls":
		err = cmdCalls(os.Args[2:])
	case "disasm":
		err = cmdDisasm(os.Args[2:])
	case "types":
		err = cmdTypes(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `fbsdump: recover FlatBuffers schemas from compiled x86-64 images

Usage:
  fbsdump dump   --meta <file> --image <path> --out <dir>   Recover schema.fbs and traces
  fbsdump calls  --meta <file> --image <path> [--type <t>]  Print create-function call sites as JSONL
  fbsdump disasm --meta <file> --image <path> --type <t>    Annotated listing of one create function
  fbsdump types  --meta <file>                              List discovered FlatBuffers types

Flags:
  --meta <file>         Method metadata (YAML or JSON)
  --image <path>        PE, ELF or raw x86-64 image
  --config <file>       Optional YAML configuration; flags override it
  --namespace <ns>      Restrict to one namespace
  --interface <name>    FlatBuffers marker interface
  --strict              Fail a type whose mapping is partial
  --best-effort         Keep partial mappings (default)
  --workers <n>         Parallel types (0 = GOMAXPROCS)
  --max-steps <n>       Per-function instruction cap
  -v                    Debug logging
`)
}

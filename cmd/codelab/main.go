package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFile     = "codelabd.pid"
	daemonName  = "codelabd"
	currentFile = "current"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "doctor":
		err = cmdDoctor()
	case "config":
		err = cmdConfig()
	case "open":
		err = cmdOpen(args)
	case "show":
		err = cmdShow(args)
	case "edit":
		err = cmdEdit(args)
	case "lang":
		err = cmdLang(args)
	case "case":
		err = cmdCase(args)
	case "run":
		err = cmdRun(args)
	case "custom":
		err = cmdCustom(args)
	case "submit":
		err = cmdSubmit(args)
	case "watch":
		err = cmdWatch(args)
	case "mcp":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("codelab %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`codelab - Coding problems against a remote judge

Usage:
  codelab <command> [arguments]

Setup Commands:
  init            Initialize codelab (first-time setup)
  doctor          Check configuration and connectivity
  config          Show current configuration

Daemon Commands:
  start           Start the codelab daemon
  stop            Stop the codelab daemon
  status          Show daemon status
  logs            View daemon logs

Problem Commands:
  open <course/problem> [--reload]   Open a problem and make it current
  show [course/problem]              Show code, test cases and state
  edit [course/problem] <file|->     Replace the code buffer
  lang [course/problem] <language>   Switch language
  case [course/problem] <n>          Select the displayed test case
  run [course/problem]               Run against the fixed test cases
  custom [course/problem] <file|->   Run against custom stdin
  submit [course/problem]            Submit for scoring

Integration Commands:
  watch [course/problem] [--all] [--amqp]  Stream events from the daemon or RabbitMQ
  mcp                                Start MCP server on stdio

Other:
  help            Show this help message
  version         Show version information

Examples:
  codelab start
  codelab open algo-101/two-sum
  codelab edit solution.py
  codelab run
  codelab submit`)
}

package main

import "flag"

// Options holds CLI options for the node.
type Options struct {
    ConfigPath string
    // Port overrides net.server.port when non-zero.
    Port int
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("netsys-node", flag.ExitOnError)
    var opts Options
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.IntVar(&opts.Port, "port", 0, "Server port (overrides config)")
    _ = fs.Parse(args)
    return opts
}

// Command netsys-node runs a netsys server node that answers ping with pong
// and optionally dials the peers listed in its configuration.
package main

import "os"

func main() { os.Exit(run(ParseFlags(os.Args[1:]))) }

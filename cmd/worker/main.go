// Command worker listens on 0.0.0.0:<port> and serves Echo/Add/Mul/HAdd/HMul
// requests, one Session per accepted connection.
package main

import (
	"fmt"
	"os"

	"dhm/hekernel"
	"dhm/worker"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: worker <port>")
		os.Exit(1)
	}

	server, err := worker.Listen(os.Args[1], hekernel.Handle)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := server.Serve(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

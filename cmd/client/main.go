// Command client drives the Echo/Add/Mul/HAdd/HMul operations against a
// pool of workers: it generates random operand matrices, dispatches them
// through a protocol.Protocol, and compares the reassembled result with a
// locally-computed expectation: exact equality for echo/add/mul, a printed
// relative-error report (no pass/fail threshold) for hadd/hmul.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"dhm/matrix"
	"dhm/ops"
	"dhm/precision"
	"dhm/protocol"
	"dhm/wire"
)

// workerAddrs accumulates repeated -worker flags into a slice, the Go
// idiom for a repeatable flag value.
type workerAddrs []string

func (w *workerAddrs) String() string {
	return fmt.Sprint(*w)
}

func (w *workerAddrs) Set(addr string) error {
	*w = append(*w, addr)
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: client [--worker <addr>]... [options]")
	flag.PrintDefaults()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var workers workerAddrs
	help := flag.Bool("help", false, "Show help")
	showData := flag.Bool("show-data", false, "Print matrices after the run")
	opName := flag.String("op", "echo", "Operation: echo|add|mul|hadd|hmul")
	aHeight := flag.Uint("ah", 512, "Height of matrix A")
	aWidth := flag.Uint("aw", 512, "Width of matrix A")
	bHeight := flag.Uint("bh", 512, "Height of matrix B")
	bWidth := flag.Uint("bw", 512, "Width of matrix B")
	size := flag.Uint("size", 0, "Overrides ah/aw/bh/bw with a single common dimension")
	flag.Var(&workers, "worker", "Worker address (host:port), repeatable")
	flag.Usage = usage
	flag.Parse()

	if *help {
		usage()
		os.Exit(1)
	}
	if len(workers) == 0 {
		fmt.Fprintln(os.Stderr, "error: at least one -worker must be specified")
		usage()
		os.Exit(1)
	}

	op, err := wire.ParseOp(*opName)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}

	ah, aw, bh, bw := *aHeight, *aWidth, *bHeight, *bWidth
	if *size != 0 {
		ah, aw, bh, bw = *size, *size, *size, *size
	}
	if err := checkDimensions(op, ah, aw, bh, bw); err != nil {
		return fmt.Errorf("client: %w", err)
	}

	var base protocol.Protocol = protocol.NewPlaintextProtocol()
	if op == wire.OpHAdd || op == wire.OpHMul {
		enc, err := protocol.NewEncryptionProtocol(base, int(aw))
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		base = enc
	}

	for _, addr := range workers {
		if err := base.AddWorker(addr); err != nil {
			return fmt.Errorf("client: %w", err)
		}
	}

	return runOperation(base, op, int(ah), int(aw), int(bh), int(bw), *showData)
}

func checkDimensions(op wire.Op, ah, aw, bh, bw uint) error {
	switch op {
	case wire.OpAdd, wire.OpHAdd:
		if ah != bh || aw != bw {
			return fmt.Errorf("add requires A and B of equal shape, got %dx%d and %dx%d", ah, aw, bh, bw)
		}
	case wire.OpMul, wire.OpHMul:
		if aw != bh {
			return fmt.Errorf("mul requires A.columns == B.rows, got %d and %d", aw, bh)
		}
		if op == wire.OpHMul && (ah != aw || bh != bw) {
			return fmt.Errorf("hmul requires A and B square, got %dx%d and %dx%d", ah, aw, bh, bw)
		}
	}
	return nil
}

func runOperation(p protocol.Protocol, op wire.Op, ah, aw, bh, bw int, showData bool) error {
	rnd := rand.New(rand.NewSource(1))

	if op == wire.OpEcho {
		a := matrix.Random(ah, aw, rnd)
		fmt.Printf("echo: matrix [%d x %d]\n", a.Rows, a.Columns)
		res, err := ops.NewEcho(p).Echo(a)
		if err != nil {
			return fmt.Errorf("echo: %w", err)
		}
		if showData {
			matrix.Print(os.Stdout, a, "input")
			matrix.Print(os.Stdout, res, "result")
		}
		if !a.Equal(res) {
			return fmt.Errorf("echo: data mismatch")
		}
		fmt.Println("echo: success!")
		return nil
	}

	a := matrix.Random(ah, aw, rnd)
	b := matrix.Random(bh, bw, rnd)
	fmt.Printf("%s: matrix [%d x %d]\n", op, a.Rows, a.Columns)
	fmt.Printf("%s: matrix [%d x %d]\n", op, b.Rows, b.Columns)

	var res, expected matrix.Matrix
	var err error

	switch op {
	case wire.OpAdd, wire.OpHAdd:
		res, err = ops.NewAdder(p, op).Add(a, b)
		expected = a.Add(b)
	case wire.OpMul, wire.OpHMul:
		res, err = ops.NewMultiplier(p, op).Multiply(a, b)
		expected = a.Mul(b)
	default:
		return fmt.Errorf("unsupported operation %s", op)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if showData {
		matrix.Print(os.Stdout, a, "A")
		matrix.Print(os.Stdout, b, "B")
		matrix.Print(os.Stdout, res, "result")
		matrix.Print(os.Stdout, expected, "expected")
	}

	switch op {
	case wire.OpHAdd, wire.OpHMul:
		report, err := precision.Summarize(expected, res)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		fmt.Println(report)
	default:
		if !expected.Equal(res) {
			return fmt.Errorf("%s: incorrect result", op)
		}
	}

	fmt.Printf("%s: success!\n", op)
	return nil
}

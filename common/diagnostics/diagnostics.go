// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package diagnostics

import (
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"

	"github.com/pbnjay/memory"
	"github.com/urfave/cli/v2"
)

// WrapPerformanceDiagnostics wraps a CLI action with optional performance
// diagnostics: a pprof server, CPU profiling, and execution tracing. The
// diagnosticsFlag selects the port of the pprof server (0 disables it), the
// cpuProfileFlag and traceFlag name the output files of the respective
// recordings (empty disables them).
func WrapPerformanceDiagnostics(action cli.ActionFunc, diagnosticsFlag *cli.IntFlag, cpuProfileFlag, traceFlag *cli.StringFlag) cli.ActionFunc {
	return func(context *cli.Context) error {

		startDiagnosticServer(context.Int(diagnosticsFlag.Names()[0]))

		if filename := strings.TrimSpace(context.String(cpuProfileFlag.Names()[0])); filename != "" {
			if err := startCpuProfiler(filename); err != nil {
				return err
			}
			defer pprof.StopCPUProfile()
		}

		if filename := strings.TrimSpace(context.String(traceFlag.Names()[0])); filename != "" {
			if err := startTracer(filename); err != nil {
				return err
			}
			defer trace.Stop()
		}

		return action(context)
	}
}

// SystemReport summarizes the resources available to the process, printed by
// the tool before long-running operations.
func SystemReport() string {
	return fmt.Sprintf("cpus: %d, total memory: %d MiB, free memory: %d MiB",
		runtime.NumCPU(),
		memory.TotalMemory()>>20,
		memory.FreeMemory()>>20,
	)
}

func startDiagnosticServer(port int) {
	if port <= 0 || port >= (1<<16) {
		return
	}
	fmt.Printf("Starting diagnostic server at port http://localhost:%d\n", port)
	fmt.Printf("(see https://pkg.go.dev/net/http/pprof#hdr-Usage_examples for usage examples)\n")
	fmt.Printf("Block and mutex sampling rate is set to 100%% for diagnostics, which may impact overall performance\n")
	go func() {
		addr := fmt.Sprintf("localhost:%d", port)
		log.Println(http.ListenAndServe(addr, nil))
	}()
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)
}

func startCpuProfiler(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %s", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return fmt.Errorf("could not start CPU profile: %s", err)
	}
	return nil
}

func startTracer(filename string) error {
	traceFile, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %v", err)
	}
	if err := trace.Start(traceFile); err != nil {
		return fmt.Errorf("failed to start trace: %v", err)
	}
	return nil
}

// Command solve runs a single trajectory-optimization problem to
// completion and prints its result as JSON. It is the one-shot
// counterpart to cmd/server's long-running HTTP/JSON-RPC service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/copyleftdev/sqpforge/internal/logging"
	"github.com/copyleftdev/sqpforge/internal/planning"
	"github.com/copyleftdev/sqpforge/internal/problemio"
	"github.com/copyleftdev/sqpforge/internal/qpsolver"
	"github.com/copyleftdev/sqpforge/internal/sqp"
	"github.com/copyleftdev/sqpforge/internal/terms"
	"github.com/copyleftdev/sqpforge/internal/toyenv"
)

func main() {
	problemPath := flag.String("problem", "", "path to a problem spec JSON file (required)")
	envPath := flag.String("env", "", "path to a toy-environment JSON file (optional)")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	flag.Parse()

	if *problemPath == "" {
		fmt.Fprintln(os.Stderr, "missing required -problem flag")
		os.Exit(2)
	}

	logger := logging.New(parseLogLevel(*logLevel), os.Stderr)

	spec, err := problemio.Load(*problemPath)
	if err != nil {
		logger.Fatal("loading problem spec", map[string]interface{}{"error": err.Error()})
	}

	var env planning.Environment
	if *envPath != "" {
		env, err = loadEnvironment(*envPath)
		if err != nil {
			logger.Fatal("loading environment", map[string]interface{}{"error": err.Error()})
		}
	}

	problem, _, err := problemio.Build(spec, env, terms.Global())
	if err != nil {
		logger.Fatal("building problem", map[string]interface{}{"error": err.Error()})
	}

	params := sqp.DefaultParams()
	if spec.Params != nil {
		params = *spec.Params
	}
	solver, err := sqp.NewSolver(params, qpsolver.NewActiveSetSolver(), logger)
	if err != nil {
		logger.Fatal("constructing solver", map[string]interface{}{"error": err.Error()})
	}

	results, err := solver.Solve(context.Background(), problem)
	if err != nil {
		logger.Fatal("solve failed", map[string]interface{}{"error": err.Error()})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		logger.Fatal("encoding results", map[string]interface{}{"error": err.Error()})
	}
	if results.Status != sqp.NLPConverged {
		os.Exit(1)
	}
}

func parseLogLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.DebugLevel
	case "info":
		return logging.InfoLevel
	case "error":
		return logging.ErrorLevel
	default:
		return logging.WarnLevel
	}
}

// environmentFile is the on-disk shape of a toy environment, mirroring
// internal/server's wire-level environmentSpec.
type environmentFile struct {
	LinkLengths []float64 `json:"link_lengths"`
	Obstacles   []struct {
		Name   string     `json:"name"`
		Center [2]float64 `json:"center"`
		Radius float64    `json:"radius"`
	} `json:"obstacles"`
}

func loadEnvironment(path string) (planning.Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ef environmentFile
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, err
	}
	obstacles := make([]toyenv.Circle, len(ef.Obstacles))
	for i, o := range ef.Obstacles {
		obstacles[i] = toyenv.Circle{Name: o.Name, Center: o.Center, Radius: o.Radius}
	}
	return toyenv.NewEnv(toyenv.NewArm(ef.LinkLengths), obstacles), nil
}

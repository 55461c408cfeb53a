//go:build mage

package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified
var Default = Help

// Help displays available mage targets
func Help() error {
	fmt.Println("ofmesh - build and test automation")
	fmt.Printf("   Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println()
	fmt.Println("Available targets:")
	fmt.Println()
	fmt.Println("  Build & test:")
	fmt.Println("    mage build        - Build the ofmesh binary")
	fmt.Println("    mage test         - Run unit tests")
	fmt.Println()
	fmt.Println("  Docker:")
	fmt.Println("    mage up           - Start containers")
	fmt.Println("    mage down         - Stop containers")
	fmt.Println("    mage logs         - Show container logs")
	fmt.Println()
	fmt.Println("  E2E:")
	fmt.Println("    mage e2e          - Run end-to-end checks against a running controller")
	fmt.Println("    mage ci           - Full pipeline (build -> up -> e2e -> down)")
	fmt.Println()
	return nil
}

// Build compiles the ofmesh binary.
func Build() error {
	fmt.Println("Building ofmesh...")
	return sh.RunV("go", "build", "-o", "bin/ofmesh", ".")
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Up starts the Docker containers.
func Up() error {
	return sh.RunV("docker", "compose", "up", "-d")
}

// Down stops the Docker containers.
func Down() error {
	return sh.RunV("docker", "compose", "down")
}

// Logs shows the container logs.
func Logs() error {
	return sh.RunV("docker", "compose", "logs", "-f")
}

// E2E runs end-to-end checks against a running controller admin plane.
func E2E() error {
	fmt.Println("\n=== E2E checks for ofmesh ===")

	if err := testHealth(); err != nil {
		return err
	}
	if err := testGraph(); err != nil {
		return err
	}
	if err := testMetrics(); err != nil {
		return err
	}

	fmt.Println("\nAll checks passed.")
	fmt.Println("  - Health: http://localhost:8090/health")
	fmt.Println("  - Graph:  http://localhost:8090/graph")
	return nil
}

// CI runs the full pipeline: build, up, e2e, down.
func CI() error {
	mg.Deps(Build)

	if err := Up(); err != nil {
		return fmt.Errorf("up failed: %w", err)
	}

	fmt.Println("Waiting for the controller to come up...")
	time.Sleep(3 * time.Second)

	testErr := E2E()

	if err := Down(); err != nil {
		fmt.Printf("warning: cleanup failed: %v\n", err)
	}

	if testErr != nil {
		return fmt.Errorf("e2e failed: %w", testErr)
	}
	return nil
}

func testHealth() error {
	fmt.Println("[1] Health endpoint")

	out, err := sh.Output("curl", "-s", "http://localhost:8090/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	if err := json.Unmarshal([]byte(out), &health); err != nil {
		return fmt.Errorf("failed to parse health response: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("expected status 'healthy', got '%s'", health.Status)
	}

	fmt.Printf("    status=%s uptime=%s\n", health.Status, health.Uptime)
	return nil
}

func testGraph() error {
	fmt.Println("[2] Graph endpoint")

	out, err := sh.Output("curl", "-s", "http://localhost:8090/graph")
	if err != nil {
		return fmt.Errorf("graph endpoint failed: %w", err)
	}

	var graph struct {
		Nodes []json.RawMessage `json:"nodes"`
		Links []json.RawMessage `json:"links"`
	}
	if err := json.Unmarshal([]byte(out), &graph); err != nil {
		return fmt.Errorf("failed to parse graph response: %w", err)
	}

	fmt.Printf("    nodes=%d links=%d\n", len(graph.Nodes), len(graph.Links))
	return nil
}

func testMetrics() error {
	fmt.Println("[3] Metrics endpoint")

	out, err := sh.Output("curl", "-s", "http://localhost:8090/metrics")
	if err != nil {
		return fmt.Errorf("metrics endpoint failed: %w", err)
	}
	if !strings.Contains(out, "go_goroutines") {
		return fmt.Errorf("metrics do not contain expected data")
	}

	fmt.Println("    metrics accessible")
	return nil
}

package constants_test

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rdmdatalab/econbench/pkg/constants"
)

// Example demonstrates using constants for common operations
func Example() {
	// Create directory with standard permissions
	dir := filepath.Join(".", "data")
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		panic(err)
	}

	// Create file with standard permissions
	file := filepath.Join(dir, "econbench.yaml")
	data := []byte("config: true")
	if err := os.WriteFile(file, data, constants.FilePermissions); err != nil {
		panic(err)
	}

	fmt.Printf("Created dir with %o permissions\n", constants.DirPermissions)
	fmt.Printf("Created file with %o permissions\n", constants.FilePermissions)
	// Output:
	// Created dir with 755 permissions
	// Created file with 644 permissions
}

// Example_timeouts demonstrates timeout constants
func Example_timeouts() {
	// HTTP client with the Census API timeout
	client := &http.Client{
		Timeout: constants.CensusAPITimeout,
	}
	fmt.Printf("Census timeout: %v\n", client.Timeout)

	// Context with operation timeout
	ctx, cancel := context.WithTimeout(
		context.Background(),
		constants.DefaultTimeout,
	)
	defer cancel()

	// Simulated operation
	select {
	case <-time.After(100 * time.Millisecond):
		fmt.Println("Operation completed")
	case <-ctx.Done():
		fmt.Println("Operation timed out")
	}

	// Output:
	// Census timeout: 1m0s
	// Operation completed
}

// Example_scaling demonstrates the published-unit scaling constants
func Example_scaling() {
	// ABS publishes payroll in $1,000 units
	published := 3322.0
	usd := published * constants.ThousandsScale
	fmt.Printf("Payroll: $%.0f\n", usd)

	// QCEW average weekly wage from annual wages
	annual := 5200000.0
	emp := 100.0
	weekly := annual / (emp * constants.WeeksPerYear)
	fmt.Printf("Weekly wage: $%.0f\n", weekly)

	// Output:
	// Payroll: $3322000
	// Weekly wage: $1000
}

// Example_artifactStamps shows the artifact timestamp formats
func Example_artifactStamps() {
	ts := time.Date(2024, 3, 9, 18, 4, 5, 0, time.UTC)

	fmt.Println(ts.Format(constants.TimeFormatArtifact))
	fmt.Println(ts.Format(constants.TimeFormatSnapshot))

	// Output:
	// 20240309T180405Z
	// 2024-03-09T18:04:05Z
}

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

var (
	verbose    = flag.Bool("v", false, "verbose output")
	short      = flag.Bool("short", false, "run only short tests")
	race       = flag.Bool("race", false, "enable the race detector")
	timeout    = flag.Duration("timeout", 5*time.Minute, "test timeout")
	testRegexp = flag.String("run", "", "run only tests matching the regular expression")
	coverFile  = flag.String("cover", "", "write a coverage profile to this file")
	packages   = flag.String("pkg", "./...", "comma separated package patterns to test")
	redisAddr  = flag.String("redis", "", "address of a live Redis for the cache adapter tests (default: in-memory server)")
)

func main() {
	flag.Parse()

	// Build test command
	args := []string{"test"}

	if *verbose {
		args = append(args, "-v")
	}
	if *short {
		args = append(args, "-short")
	}
	if *race {
		args = append(args, "-race")
	}
	args = append(args, fmt.Sprintf("-timeout=%s", timeout.String()))
	if *testRegexp != "" {
		args = append(args, fmt.Sprintf("-run=%s", *testRegexp))
	}
	if *coverFile != "" {
		args = append(args, "-covermode=atomic", fmt.Sprintf("-coverprofile=%s", *coverFile))
	}
	for _, pkg := range strings.Split(*packages, ",") {
		if pkg = strings.TrimSpace(pkg); pkg != "" {
			args = append(args, pkg)
		}
	}

	cmd := exec.Command("go", args...)

	env := append(os.Environ(), "TEST_ENV=true")
	if *redisAddr != "" {
		env = append(env, "JOURNAL_TEST_REDIS_ADDR="+*redisAddr)
	}
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("Running tests with args: %s\n", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Printf("Error running tests: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	minKeyLength = 8
	maxKeyLength = 256
)

// runSeedKey writes the given API key into an env file as DEFAULT_API_KEY,
// preserving any other variables the file already holds.
func runSeedKey(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("seed-key", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	envFile := cmd.String("env-file", ".env", "env file to update")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: crowddata seed-key [--env-file FILE] KEY")
		return 2
	}

	key := cmd.Arg(0)
	if err := validateKeyFormat(key); err != nil {
		fmt.Fprintf(stderr, "invalid key: %v\n", err)
		return 1
	}

	if err := updateEnvFile(*envFile, "DEFAULT_API_KEY", key); err != nil {
		fmt.Fprintf(stderr, "update %s: %v\n", *envFile, err)
		return 1
	}

	fmt.Fprintf(stdout, "DEFAULT_API_KEY set to %s in %s\n", keyPreview(key), *envFile)
	return 0
}

func validateKeyFormat(key string) error {
	if len(key) < minKeyLength {
		return fmt.Errorf("must be at least %d characters", minKeyLength)
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("must be at most %d characters", maxKeyLength)
	}
	if strings.ContainsAny(key, " \t\r\n") {
		return fmt.Errorf("must not contain whitespace")
	}
	return nil
}

// keyPreview shows enough of the key to recognize it without exposing it.
func keyPreview(key string) string {
	if len(key) <= 12 {
		return key[:4] + "..."
	}
	return key[:8] + "..." + key[len(key)-4:]
}

// updateEnvFile rewrites path with name=value, keeping every other line
// (including comments and blanks) as it was. The file is created when it
// does not exist.
func updateEnvFile(path, name, value string) error {
	var lines []string
	replaced := false

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, name+"=") {
				lines[i] = name + "=" + value
				replaced = true
			}
		}
	case os.IsNotExist(err):
		// fresh file
	default:
		return err
	}

	if !replaced {
		lines = append(lines, name+"="+value)
	}

	// Drop a lone empty line from reading an empty file.
	if len(lines) == 2 && lines[0] == "" {
		lines = lines[1:]
	}

	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}

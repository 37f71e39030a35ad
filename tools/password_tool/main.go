// Command password_tool sets or clears the dashboard password in a
// procman.config file. With no password configured procman runs in open
// mode; this tool writes the bcrypt hash the server checks at login.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"procman/internal/middleware"
)

func main() {
	configPath := flag.String("config", "procman.config", "Path to procman.config")
	password := flag.String("password", "", "New password (leave blank to type securely)")
	clear := flag.Bool("clear", false, "Remove the password and return to open mode")
	flag.Parse()

	cfgPath, err := filepath.Abs(strings.TrimSpace(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to resolve config path: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *clear {
		delete(cfg, "password_hash")
		if err := saveConfig(cfgPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to save config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Password cleared; dashboard now runs in open mode.")
		return
	}

	pwd, err := resolvePassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "password error: %v\n", err)
		os.Exit(1)
	}

	auth := middleware.NewAuthService("", "")
	hash, err := auth.HashPassword(pwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	cfg["password_hash"] = hash
	if err := saveConfig(cfgPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Updated password hash in %s. Restart procman to apply.\n", cfgPath)
}

// loadConfig reads the config as a generic map so unknown fields survive a
// round trip. A missing file starts from an empty config.
func loadConfig(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := map[string]interface{}{}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func saveConfig(path string, cfg map[string]interface{}) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func resolvePassword(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed != "" {
		if len(trimmed) < 8 {
			return "", fmt.Errorf("password must be at least 8 characters")
		}
		return trimmed, nil
	}

	first, err := promptPassword("Enter new password: ")
	if err != nil {
		return "", err
	}
	second, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	return first, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		bytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	text, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

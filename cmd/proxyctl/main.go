// proxyctl is an interactive admin CLI for the proxy's YAML config
// store: add or remove backends, and add or remove authorized users
// with generated API keys. Grounded on the teacher's
// internal/tui.SetupModel, which drives the same kind of multi-step
// huh.Form workflow before writing a YAML file to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/lucasjones/reggen"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
)

// keyPattern generates API keys that look like "sk-" followed by 32
// hex characters, long enough to be a credible bearer credential.
const keyPattern = `sk-[a-f0-9]{32}`

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to YAML configuration file")
	flag.Parse()

	snap, err := loadOrEmpty(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxyctl: %v\n", err)
		os.Exit(1)
	}

	action := ""
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What would you like to do?").
				Options(
					huh.NewOption("Add a backend", "add-backend"),
					huh.NewOption("Remove a backend", "remove-backend"),
					huh.NewOption("Add a user", "add-user"),
					huh.NewOption("Remove a user", "remove-user"),
					huh.NewOption("List current configuration", "list"),
				).
				Value(&action),
		),
	).WithTheme(huh.ThemeCharm()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "proxyctl: %v\n", err)
		os.Exit(1)
	}

	switch action {
	case "add-backend":
		err = addBackend(snap)
	case "remove-backend":
		err = removeBackend(snap)
	case "add-user":
		err = addUser(snap)
	case "remove-user":
		err = removeUser(snap)
	case "list":
		printConfig(snap)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxyctl: %v\n", err)
		os.Exit(1)
	}

	if err := configstore.Save(configPath, snap); err != nil {
		fmt.Fprintf(os.Stderr, "proxyctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("saved %s\n", configPath)
}

func loadOrEmpty(path string) (*configstore.Snapshot, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &configstore.Snapshot{RetryAttempts: 1, Users: configstore.AuthorizedUsers{}}, nil
	}
	store := configstore.NewFileStore(path)
	return store.Load(context.Background())
}

func addBackend(snap *configstore.Snapshot) error {
	var (
		name       string
		url        string
		modelsCSV  string
		timeoutStr = "300"
		rateStr    = "0"
	)

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Backend name").Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewInput().Title("Backend URL").Placeholder("http://10.0.0.5:11434").Value(&url),
			huh.NewInput().Title("Models served (comma-separated)").Placeholder("llama3,mistral").Value(&modelsCSV),
			huh.NewInput().Title("Timeout (seconds)").Value(&timeoutStr),
			huh.NewInput().Title("Rate limit (requests/second, 0 = unlimited)").Value(&rateStr),
		),
	).WithTheme(huh.ThemeCharm()).Run()
	if err != nil {
		return err
	}

	timeout, err := strconv.Atoi(strings.TrimSpace(timeoutStr))
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	rateLimit, err := strconv.Atoi(strings.TrimSpace(rateStr))
	if err != nil {
		return fmt.Errorf("invalid rate limit: %w", err)
	}

	models := make(map[string]struct{})
	for _, m := range strings.Split(modelsCSV, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models[m] = struct{}{}
		}
	}

	snap.Backends = append(snap.Backends, &configstore.Backend{
		Name:               name,
		URL:                url,
		Models:             models,
		TimeoutSeconds:     timeout,
		RateLimitPerSecond: rateLimit,
	})
	return nil
}

func removeBackend(snap *configstore.Snapshot) error {
	if len(snap.Backends) == 0 {
		return fmt.Errorf("no backends configured")
	}

	options := make([]huh.Option[string], 0, len(snap.Backends))
	for _, b := range snap.Backends {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", b.Name, b.URL), b.Name))
	}

	target := ""
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Remove which backend?").Options(options...).Value(&target),
		),
	).WithTheme(huh.ThemeCharm()).Run(); err != nil {
		return err
	}

	kept := snap.Backends[:0]
	for _, b := range snap.Backends {
		if b.Name != target {
			kept = append(kept, b)
		}
	}
	snap.Backends = kept
	return nil
}

func addUser(snap *configstore.Snapshot) error {
	var username string
	generate := true

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Username").Value(&username).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("username is required")
					}
					return nil
				}),
			huh.NewConfirm().Title("Generate a random API key?").Value(&generate),
		),
	).WithTheme(huh.ThemeCharm()).Run(); err != nil {
		return err
	}

	key := ""
	if generate {
		generated, err := reggen.Generate(keyPattern, 1)
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		key = generated
	} else if err := huh.NewForm(
		huh.NewGroup(huh.NewInput().Title("API key").Value(&key)),
	).WithTheme(huh.ThemeCharm()).Run(); err != nil {
		return err
	}

	if snap.Users == nil {
		snap.Users = configstore.AuthorizedUsers{}
	}
	snap.Users[username] = key
	fmt.Printf("user %q key: %s\n", username, key)
	return nil
}

func removeUser(snap *configstore.Snapshot) error {
	if len(snap.Users) == 0 {
		return fmt.Errorf("no users configured")
	}

	options := make([]huh.Option[string], 0, len(snap.Users))
	for username := range snap.Users {
		options = append(options, huh.NewOption(username, username))
	}

	target := ""
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Remove which user?").Options(options...).Value(&target),
		),
	).WithTheme(huh.ThemeCharm()).Run(); err != nil {
		return err
	}

	delete(snap.Users, target)
	return nil
}

func printConfig(snap *configstore.Snapshot) {
	fmt.Printf("retry_attempts: %d\n", snap.RetryAttempts)
	fmt.Printf("security_disabled: %v\n", snap.SecurityDisabled)
	fmt.Println("backends:")
	for _, b := range snap.Backends {
		models := make([]string, 0, len(b.Models))
		for m := range b.Models {
			models = append(models, m)
		}
		fmt.Printf("  - %s %s models=%s timeout=%ds\n", b.Name, b.URL, strings.Join(models, ","), b.Timeout())
	}
	fmt.Println("users:")
	for username := range snap.Users {
		fmt.Printf("  - %s\n", username)
	}
}

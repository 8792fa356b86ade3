// cmd/tools/revision-tool/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"certflow/pkg/registry"
)

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	defaultCmd := flag.NewFlagSet("set-default", flag.ExitOnError)

	listPath := listCmd.String("path", "configs/revisions.json", "Path to revision registry")
	showPath := showCmd.String("path", "configs/revisions.json", "Path to revision registry")
	showID := showCmd.String("id", "default", "Revision ID")
	validatePath := validateCmd.String("path", "configs/revisions.json", "Path to revision registry")
	defaultPath := defaultCmd.String("path", "configs/revisions.json", "Path to revision registry")
	defaultID := defaultCmd.String("id", "", "Revision ID to make the default")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		err = list(*listPath)
	case "show":
		showCmd.Parse(os.Args[2:])
		err = show(*showPath, *showID)
	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validate(*validatePath)
		if err == nil {
			fmt.Println("Registry validation passed.")
		}
	case "set-default":
		defaultCmd.Parse(os.Args[2:])
		if *defaultID == "" {
			fmt.Println("Error: id is required for set-default.")
			defaultCmd.Usage()
			os.Exit(1)
		}
		err = setDefault(*defaultPath, *defaultID)
	default:
		help()
		return
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func list(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	for _, rev := range reg.Revisions {
		marker := " "
		if rev.ID == reg.Default {
			marker = "*"
		}
		fmt.Printf("%s %-4s %-26s %d steps, %s, guard=%s %s\n",
			marker, rev.ID, rev.DisplayName, len(rev.Steps), rev.TransitionMode, rev.GuardMode,
			strings.Join(rev.Tags, ","))
	}
	return nil
}

func show(path, id string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	rev, ok := reg.Find(id)
	if !ok {
		return fmt.Errorf("revision %s not found", id)
	}
	out, err := json.MarshalIndent(rev, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func validate(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	return reg.Validate()
}

func setDefault(path, id string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if _, ok := reg.Find(id); !ok {
		return fmt.Errorf("revision %s not found", id)
	}
	reg.Default = id
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := registry.Save(reg, path); err != nil {
		return err
	}
	fmt.Printf("Default revision set to %s\n", id)
	return nil
}

func help() {
	fmt.Println("Usage: revision-tool <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  list         List revisions (* marks the default)")
	fmt.Println("  show         Print one revision as JSON")
	fmt.Println("  validate     Check every revision in the registry")
	fmt.Println("  set-default  Change the default revision")
}

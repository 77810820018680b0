// Package main provides a CLI tool for generating the secrets a credex
// deployment needs and for inspecting an encrypted credential file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"credex/pkg/secrets"
)

type secretOutput struct {
	Secret string            `json:"secret"`
	Type   string            `json:"type"`
	Usage  map[string]string `json:"usage"`
}

func main() {
	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)
	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	storageCmd := flag.NewFlagSet("storage", flag.ExitOnError)
	storageJSON := storageCmd.Bool("json", false, "Output as JSON")

	inspectCmd := flag.NewFlagSet("inspect", flag.ExitOnError)
	inspectFile := inspectCmd.String("file", "storage/credentials.json", "Sealed credential file")
	inspectSecret := inspectCmd.String("secret", os.Getenv("STORAGE_ENCRYPTION_SECRET"), "Encryption secret (defaults to STORAGE_ENCRYPTION_SECRET)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "admin":
		_ = adminCmd.Parse(os.Args[2:])
		generate("admin_token", "ADMIN_API_TOKEN", "X-Admin-Token: <secret>", *adminJSON)
	case "storage":
		_ = storageCmd.Parse(os.Args[2:])
		generate("encryption_secret", "STORAGE_ENCRYPTION_SECRET", "", *storageJSON)
	case "inspect":
		_ = inspectCmd.Parse(os.Args[2:])
		inspect(*inspectFile, *inspectSecret)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`secretgen - Generate and use credex deployment secrets

Usage:
  secretgen <command> [flags]

Commands:
  admin     Generate a token for the trusted-issuer admin API
  storage   Generate a secret for encrypting the credential file
  inspect   Decrypt a sealed credential file and print its JSON

Examples:
  # Generate an admin token
  secretgen admin

  # Generate a storage secret as JSON
  secretgen storage -json

  # Print the decrypted credential collection
  STORAGE_ENCRYPTION_SECRET=... secretgen inspect -file storage/credentials.json

Use "secretgen <command> -h" for more information about a command.`)
}

func generate(kind, envVar, header string, jsonOutput bool) {
	secret, err := secrets.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating secret: %v\n", err)
		os.Exit(1)
	}

	usage := map[string]string{"env": envVar + "=<secret>"}
	if header != "" {
		usage["header"] = header
	}

	if jsonOutput {
		printJSON(secretOutput{Secret: secret, Type: kind, Usage: usage})
		return
	}
	fmt.Println(secret)
	fmt.Fprintf(os.Stderr, "\nSet %s=<secret> on the server.\n", envVar)
	if header != "" {
		fmt.Fprintf(os.Stderr, "Send it as %s.\n", header)
	}
}

func inspect(path, secret string) {
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: -secret or STORAGE_ENCRYPTION_SECRET is required")
		os.Exit(1)
	}
	sealer, err := secrets.NewSealer(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sealed, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		os.Exit(1)
	}
	plain, err := sealer.Open(sealed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decrypting %s: %v\n", path, err)
		os.Exit(1)
	}

	var records any
	if err := json.Unmarshal(plain, &records); err != nil {
		fmt.Fprintf(os.Stderr, "Error: decrypted content is not JSON: %v\n", err)
		os.Exit(1)
	}
	printJSON(records)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

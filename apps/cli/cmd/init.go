package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitcase/packages/catalog"
	"github.com/abdul-hamid-achik/hitcase/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitcase project",
	Long: `Initialize a new hitcase project in the current directory.

This creates:
  - hitcase.config.json - Configuration file
  - catalog.yaml        - Example catalog with one project

Examples:
  hitcase init
  hitcase init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

// exampleCatalog is the catalog written by init.
func exampleCatalog() map[string]any {
	return map[string]any{
		"projects": []any{
			map[string]any{
				"id":   1,
				"name": "example-api",
				"environments": []any{
					map[string]any{
						"id":         1,
						"name":       "Development",
						"code":       "dev",
						"base_url":   "http://localhost:3000",
						"is_default": true,
						"headers": map[string]string{
							"Authorization": "Bearer {{token}}",
						},
						"variables": map[string]any{
							"token": "dev-token",
						},
					},
					map[string]any{
						"id":       2,
						"name":     "Staging",
						"code":     "staging",
						"base_url": "https://staging.api.example.com",
						"headers": map[string]string{
							"Authorization": "Bearer {{$STAGING_TOKEN}}",
						},
					},
				},
				"test_cases": []any{
					map[string]any{
						"id":     1,
						"name":   "health check",
						"method": "GET",
						"url":    "/health",
						"assertions": []any{
							map[string]any{"source": "status_code", "operator": "eq", "value": 200},
							map[string]any{"source": "response_time", "operator": "lt", "value": 1},
						},
					},
					map[string]any{
						"id":     2,
						"name":   "create resource",
						"method": "POST",
						"url":    "/resources",
						"body": map[string]any{
							"name":      "Test Resource",
							"requestId": "{{uuid()}}",
						},
						"assertions": []any{
							map[string]any{"source": "status_code", "operator": "eq", "value": 201},
							map[string]any{"source": "header", "expression": "Content-Type", "operator": "contains", "value": "json"},
							map[string]any{"source": "body", "expression": "$.name", "operator": "eq", "value": "Test Resource"},
						},
					},
					map[string]any{
						"id":          3,
						"name":        "get resource",
						"method":      "GET",
						"url":         "/resources/{id}",
						"path_params": map[string]any{"id": 1},
						"params":      map[string]any{"expand": "owner"},
						"assertions": []any{
							map[string]any{"source": "status_code", "operator": "eq", "value": 200},
							map[string]any{"source": "body", "expression": "$.id", "operator": "eq", "value": 1},
						},
					},
				},
			},
		},
	}
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "hitcase.config.json")
	catalogFile := filepath.Join(cwd, "catalog.yaml")

	if !forceInit {
		for _, f := range []string{configFile, catalogFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Catalog = "catalog.yaml"
	cfg.Headers = map[string]string{"User-Agent": "hitcase/" + version}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	catalogYAML, err := yaml.Marshal(exampleCatalog())
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if _, err := catalog.Parse(catalogYAML); err != nil {
		return fmt.Errorf("example catalog is invalid: %w", err)
	}
	if err := os.WriteFile(catalogFile, catalogYAML, 0644); err != nil {
		return fmt.Errorf("failed to create catalog file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", catalogFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitcase project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitcase run --project 1' to execute the example test cases.\n")

	return nil
}

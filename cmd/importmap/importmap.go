/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package importmap provides the importmap command for mappa.
package importmap

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/modresolve/resolver/fs"
	"github.com/modresolve/resolver/importmap"
	"github.com/modresolve/resolver/internal/output"
	"github.com/modresolve/resolver/resolve"
	"github.com/modresolve/resolver/resolve/local"
)

// Cmd is the importmap cobra command that builds an import map from
// package.json dependencies.
var Cmd = &cobra.Command{
	Use:   "importmap",
	Short: "Generate an import map from package.json",
	Long: `Generate an import map from package.json dependencies.

By default, generates local /node_modules paths. Use --template for custom paths.`,
	Example: `  # Generate import map with local paths (default)
  mappa importmap

  # Custom local paths
  mappa importmap --template "/assets/packages/{package}/{path}"

  # Include additional packages (e.g., devDependencies)
  mappa importmap --include-package fuse.js

  # Merge with an existing import map (input map takes precedence)
  mappa importmap --input-map manual-imports.json

  # Output as HTML script tag
  mappa importmap --format html`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "json", "Output format (json, html)")
	Cmd.Flags().String("input-map", "", "Import map file to merge with generated output")
	Cmd.Flags().StringArray("include-package", nil, "Additional packages to include (can be repeated)")
	Cmd.Flags().String("template", "", "URL template (default: /node_modules/{package}/{path})")
	Cmd.Flags().StringSlice("conditions", nil, "Export condition priority (e.g., production,browser,import,default)")

	_ = viper.BindPFlag("format", Cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("input-map", Cmd.Flags().Lookup("input-map"))
	_ = viper.BindPFlag("include-package", Cmd.Flags().Lookup("include-package"))
	_ = viper.BindPFlag("template", Cmd.Flags().Lookup("template"))
	_ = viper.BindPFlag("conditions", Cmd.Flags().Lookup("conditions"))
}

func run(cmd *cobra.Command, args []string) error {
	osfs := fs.NewOSFileSystem()
	absRoot, err := filepath.Abs(viper.GetString("package"))
	if err != nil {
		return fmt.Errorf("invalid package directory: %w", err)
	}

	format := viper.GetString("format")
	if format != "json" && format != "html" {
		return fmt.Errorf("invalid format %q: must be 'json' or 'html'", format)
	}

	includePackages := viper.GetStringSlice("include-package")

	var inputMap *importmap.ImportMap
	if inputMapPath := viper.GetString("input-map"); inputMapPath != "" {
		data, err := osfs.ReadFile(inputMapPath)
		if err != nil {
			return fmt.Errorf("failed to read input map: %w", err)
		}
		inputMap, err = importmap.Parse(data)
		if err != nil {
			return fmt.Errorf("failed to parse input map: %w", err)
		}
	}

	templateArg := viper.GetString("template")
	if templateArg == "" {
		templateArg = resolve.DefaultLocalTemplate
	}

	r := local.New(osfs, nil)
	if len(includePackages) > 0 {
		r = r.WithPackages(includePackages)
	}
	r, err = r.WithTemplate(templateArg)
	if err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	if inputMap != nil {
		r = r.WithInputMap(inputMap)
	}
	if conditions := viper.GetStringSlice("conditions"); len(conditions) > 0 {
		r = r.WithConditions(conditions)
	}

	generatedMap, err := r.Resolve(absRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve: %w", err)
	}

	return output.ImportMap(osfs, generatedMap.Simplify(), format)
}

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

// Package tsconfig provides the tsconfig command for mappa: loading and
// inspecting a project's resolved tsconfig.json, including its merged
// extends chain and compiled "paths" patterns.
package tsconfig

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/modresolve/resolver/fs"
	"github.com/modresolve/resolver/resolver"
)

// Cmd is the tsconfig cobra command.
var Cmd = &cobra.Command{
	Use:   "tsconfig [specifier]",
	Short: "Load a project's tsconfig.json and show its resolved paths config",
	Long: `Load the tsconfig.json governing a directory, resolving its extends
chain, and print its effective baseUrl and paths patterns. With a
specifier argument, also prints the "paths" candidates it expands to.`,
	Example: `  # Show the resolved tsconfig for the current directory
  mappa tsconfig

  # Show what @app/* paths expand to
  mappa tsconfig @app/utils`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,
}

func init() {
	Cmd.Flags().String("config", "", "Explicit tsconfig.json path (default: discovered from --package)")
}

type output struct {
	PathsBase  string   `json:"pathsBase"`
	Paths      []string `json:"paths"`
	Candidates []string `json:"candidates,omitempty"`
}

func run(cmd *cobra.Command, args []string) error {
	osfs := fs.NewOSFileSystem()

	absRoot, err := filepath.Abs(viper.GetString("package"))
	if err != nil {
		return fmt.Errorf("invalid package directory: %w", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	hint := absRoot
	if configFile != "" {
		hint = configFile
	}

	r := resolver.NewResolver(resolver.DefaultOptions(), osfs)
	cfg, err := r.ResolveTsconfig(hint)
	if err != nil {
		return fmt.Errorf("failed to load tsconfig: %w", err)
	}

	out := output{PathsBase: cfg.PathsBase}
	for _, p := range cfg.Paths {
		out.Paths = append(out.Paths, p.Key)
	}
	if len(args) == 1 {
		out.Candidates = cfg.MatchPaths(args[0])
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	if outputPath := viper.GetString("output"); outputPath != "" {
		return osfs.WriteFile(outputPath, append(encoded, '\n'), 0644)
	}
	fmt.Println(string(encoded))
	return nil
}

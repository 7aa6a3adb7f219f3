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

// Package resolve provides the resolve command for mappa: running a single
// specifier through the Node-resolution-algorithm engine and printing what
// it would load.
package resolve

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/modresolve/resolver/fs"
	"github.com/modresolve/resolver/resolver"
)

// Cmd is the resolve cobra command.
var Cmd = &cobra.Command{
	Use:   "resolve <specifier>",
	Short: "Resolve a module specifier the way Node would load it",
	Long: `Resolve a single module specifier from a directory, printing the
absolute path that would be loaded plus its module type and governing
package name.`,
	Example: `  # Resolve a bare specifier from the current directory
  mappa resolve lit

  # Resolve a relative specifier
  mappa resolve ./src/index.js

  # Resolve against a specific condition set
  mappa resolve lit/decorators.js --conditions browser,import,default

  # Resolve a specifier's TypeScript declaration file instead of its
  # runtime module
  mappa resolve lit --types`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	Cmd.Flags().StringSlice("conditions", nil, "Export condition priority (e.g., browser,import,default)")
	Cmd.Flags().Bool("builtins", false, "Recognize Node core module names (fs, path, ...)")
	Cmd.Flags().Bool("full-path", false, "Also print query and fragment appended to the path")
	Cmd.Flags().Bool("types", false, "Resolve the specifier's .d.ts declaration file instead of its runtime module")
}

type result struct {
	Path        string `json:"path"`
	ModuleType  string `json:"moduleType"`
	PackageName string `json:"packageName,omitempty"`
}

func run(cmd *cobra.Command, args []string) error {
	osfs := fs.NewOSFileSystem()

	absRoot, err := filepath.Abs(viper.GetString("package"))
	if err != nil {
		return fmt.Errorf("invalid package directory: %w", err)
	}

	opts := resolver.DefaultOptions()
	if conditions, _ := cmd.Flags().GetStringSlice("conditions"); len(conditions) > 0 {
		opts.ConditionNames = conditions
	}
	if builtins, _ := cmd.Flags().GetBool("builtins"); builtins {
		opts.BuiltinModules = true
	}

	rv := resolver.NewResolver(opts, osfs)
	resolveTypes, _ := cmd.Flags().GetBool("types")
	var res *resolver.Resolution
	if resolveTypes {
		// ResolveTypes mirrors ts.resolveModuleName's (moduleName, containingFile)
		// signature, so synthesize a containing file inside absRoot.
		res, err = rv.ResolveTypes(filepath.Join(absRoot, "index.ts"), args[0])
	} else {
		res, err = rv.Resolve(absRoot, args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", args[0], err)
	}

	path := res.Path()
	if fullPath, _ := cmd.Flags().GetBool("full-path"); fullPath {
		path = res.FullPath()
	}

	out := result{Path: path, ModuleType: moduleTypeName(res.ModuleType())}
	if pkg := res.PackageJSON(); pkg != nil {
		out.PackageName = pkg.Name
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

func moduleTypeName(t resolver.ModuleType) string {
	switch t {
	case resolver.ModuleCommonJS:
		return "commonjs"
	case resolver.ModuleESM:
		return "module"
	case resolver.ModuleJSON:
		return "json"
	case resolver.ModuleWasm:
		return "wasm"
	case resolver.ModuleAddon:
		return "addon"
	default:
		return "unknown"
	}
}

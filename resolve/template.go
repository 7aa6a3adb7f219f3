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
package resolve

import (
	"fmt"
	"regexp"
	"strings"
)

// Template is a URL template with {package}/{name}/{scope}/{version}/{path}
// placeholders, expanded per package to build an import map's values.
type Template struct {
	pattern   string
	variables []string
}

var variablePattern = regexp.MustCompile(`\{(\w+)\}`)

var validTemplateVars = map[string]bool{
	"package": true,
	"name":    true,
	"scope":   true,
	"version": true,
	"path":    true,
}

// ParseTemplate parses a URL template pattern, rejecting unknown variables.
func ParseTemplate(pattern string) (*Template, error) {
	if pattern == "" {
		return nil, fmt.Errorf("template pattern cannot be empty")
	}

	var variables []string
	for _, match := range variablePattern.FindAllStringSubmatch(pattern, -1) {
		if !validTemplateVars[match[1]] {
			return nil, fmt.Errorf("unknown template variable: {%s}", match[1])
		}
		variables = append(variables, match[1])
	}

	return &Template{pattern: pattern, variables: variables}, nil
}

// Expand substitutes variables in the template with actual values.
func (t *Template) Expand(pkg, version, path string) string {
	name, scope := SplitPackageName(pkg)

	result := t.pattern
	result = strings.ReplaceAll(result, "{package}", pkg)
	result = strings.ReplaceAll(result, "{name}", name)
	result = strings.ReplaceAll(result, "{scope}", scope)
	result = strings.ReplaceAll(result, "{version}", version)
	result = strings.ReplaceAll(result, "{path}", path)

	return result
}

// Pattern returns the original template pattern.
func (t *Template) Pattern() string { return t.pattern }

// SplitPackageName splits "@scope/name" into ("name", "scope"), or "name"
// into ("name", "").
func SplitPackageName(pkg string) (name, scope string) {
	if strings.HasPrefix(pkg, "@") {
		parts := strings.SplitN(pkg, "/", 2)
		if len(parts) == 2 {
			return parts[1], strings.TrimPrefix(parts[0], "@")
		}
		return pkg, ""
	}
	return pkg, ""
}

// DefaultLocalTemplate points import map values at a project's own
// node_modules, the default for a non-CDN, locally-served project.
const DefaultLocalTemplate = "/node_modules/{package}/{path}"

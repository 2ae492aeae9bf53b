package inspect

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gobwas/glob"

	"github.com/osbuild/bootspec/pkg/bootspec"
)

// ExtensionNames returns the sorted names of the extensions of g matching
// pattern. Names are namespaced with dots, so "*" matches one component and
// "**" any number of them: "org.example.*" matches "org.example.tool" but
// not "org.example.tool.v2".
func ExtensionNames(g bootspec.Generation, pattern string) ([]string, error) {
	matcher, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, fmt.Errorf("invalid extension pattern '%s': %w", pattern, err)
	}

	var extensions bootspec.Extensions
	switch g := g.(type) {
	case *bootspec.GenerationV1:
		extensions = g.Extensions
	default:
		return nil, fmt.Errorf("unsupported bootspec version %d", g.Version())
	}

	names := []string{}
	for _, name := range slices.Sorted(maps.Keys(extensions)) {
		if matcher.Match(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

package inspect

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Query evaluates the JSONPath expression expr against the raw document and
// returns the matching values, e.g. "$.v1.kernelParams[*]".
func Query(doc []byte, expr string) ([]any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	data, err := oj.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return x.Get(data), nil
}

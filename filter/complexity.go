package filter

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/theplant/sortfilter"
)

// ComplexityLimits defines limits for filter complexity.
// A value of 0 means no limit for that metric.
type ComplexityLimits struct {
	MaxDepth            int // Maximum nesting depth of child nodes
	MaxTotalFields      int // Maximum number of comparison terms
	MaxLogicalOperators int // Maximum number of And/Or joins
	MaxOrBranches       int // Maximum terms joined by Or in a single sibling list
}

// ComplexityResult contains the calculated complexity metrics of a filter.
type ComplexityResult struct {
	Depth            int // Deepest nesting level reached
	TotalFields      int // Total number of comparison terms
	LogicalOperators int // Total number of joins between siblings
	OrBranches       int // Maximum Or branches found in any sibling list
}

// Predefined complexity limits
var (
	// DefaultLimits provides reasonable defaults for most use cases.
	DefaultLimits = &ComplexityLimits{
		MaxDepth:            3,
		MaxTotalFields:      20,
		MaxLogicalOperators: 20,
		MaxOrBranches:       10,
	}

	// StrictLimits provides tighter limits for security-sensitive contexts.
	StrictLimits = &ComplexityLimits{
		MaxDepth:            2,
		MaxTotalFields:      5,
		MaxLogicalOperators: 5,
		MaxOrBranches:       3,
	}

	// RelaxedLimits provides looser limits for trusted/internal use.
	RelaxedLimits = &ComplexityLimits{
		MaxDepth:            5,
		MaxTotalFields:      50,
		MaxLogicalOperators: 50,
		MaxOrBranches:       25,
	}
)

// CheckComplexity validates that a filter doesn't exceed the specified limits.
// The returned error wraps ErrComplexity. If limits is nil, no validation is
// performed.
func CheckComplexity(f sortfilter.Filter, limits *ComplexityLimits) error {
	if limits == nil {
		return nil
	}

	result := CalculateComplexity(f)

	if limits.MaxDepth > 0 && result.Depth > limits.MaxDepth {
		return errors.Wrapf(ErrComplexity, "depth %d exceeds limit %d", result.Depth, limits.MaxDepth)
	}
	if limits.MaxTotalFields > 0 && result.TotalFields > limits.MaxTotalFields {
		return errors.Wrapf(ErrComplexity, "field count %d exceeds limit %d", result.TotalFields, limits.MaxTotalFields)
	}
	if limits.MaxLogicalOperators > 0 && result.LogicalOperators > limits.MaxLogicalOperators {
		return errors.Wrapf(ErrComplexity, "logical operator count %d exceeds limit %d", result.LogicalOperators, limits.MaxLogicalOperators)
	}
	if limits.MaxOrBranches > 0 && result.OrBranches > limits.MaxOrBranches {
		return errors.Wrapf(ErrComplexity, "Or branches %d exceeds limit %d", result.OrBranches, limits.MaxOrBranches)
	}

	return nil
}

// CalculateComplexity analyzes a filter and returns its complexity metrics.
func CalculateComplexity(f sortfilter.Filter) *ComplexityResult {
	result := &ComplexityResult{}
	if len(f) > 0 {
		calculateComplexityRecursive(f, 1, result)
	}
	return result
}

func calculateComplexityRecursive(nodes sortfilter.Filter, depth int, result *ComplexityResult) {
	if depth > result.Depth {
		result.Depth = depth
	}

	orBranches := 0
	seeded := false
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if seeded {
			result.LogicalOperators++
			if node.Lop == sortfilter.LopOr {
				if orBranches == 0 {
					orBranches = 1 // the term the first Or joins onto
				}
				orBranches++
			}
		}
		seeded = true

		if strings.TrimSpace(node.Value) != "" || node.IsValueNull {
			result.TotalFields++
		}
		if len(node.Children) > 0 {
			calculateComplexityRecursive(node.Children, depth+1, result)
		}
	}

	if orBranches > result.OrBranches {
		result.OrBranches = orBranches
	}
}

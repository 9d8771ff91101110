package sql

import (
	"fmt"
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// InjectionCheckResult contains the result of an injection check on a value.
// Report values are always bound, so a hit is an audit signal, not a reason to
// refuse the request.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Name of the parameter or search field that was checked
	ParamValue  any    // The value that was checked
}

// CheckParameterForInjection uses libinjection to detect SQL injection patterns
// in a value.
//
// Only string values are checked - numbers, booleans, and other types cannot
// contain SQL injection patterns and will return nil (no injection detected).
//
// Example:
//
//	result := CheckParameterForInjection("search", "'; DROP TABLE users--")
//	// result.IsSQLi == true
//	// result.ParamName == "search"
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamName:   paramName,
			ParamValue:  value,
		}
	}

	return nil
}

// CheckAllParameters checks every resolved parameter value.
// Results are ordered by parameter name.
func CheckAllParameters(params map[string]any) []*InjectionCheckResult {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []*InjectionCheckResult
	for _, name := range names {
		if result := CheckParameterForInjection(name, params[name]); result != nil {
			results = append(results, result)
		}
	}
	return results
}

// CheckGridSearch checks the global and per-column search terms of a grid request.
// Per-column hits are named "columns[i]" after the protocol field they came from.
func CheckGridSearch(req *models.GridRequest) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	if result := CheckParameterForInjection("search", req.GlobalSearch); result != nil {
		results = append(results, result)
	}

	indexes := make([]int, 0, len(req.ColumnSearch))
	for idx := range req.ColumnSearch {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	for _, idx := range indexes {
		field := fmt.Sprintf("columns[%d]", idx)
		if result := CheckParameterForInjection(field, req.ColumnSearch[idx]); result != nil {
			results = append(results, result)
		}
	}
	return results
}

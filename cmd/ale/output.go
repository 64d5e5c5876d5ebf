package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg, Code: code})
	}
	os.Exit(code)
}

// exitWithErr exits with the code matching err's class.
func exitWithErr(context string, err error) {
	exitWithError(exitCodeFor(err), "%s: %v", context, err)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// formatIDs formats document ids as a comma-separated list, eliding the
// middle of long lists.
func formatIDs(ids []int, maxShown int) string {
	if len(ids) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, min(len(ids), maxShown)+1)
	for i, id := range ids {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(ids)-maxShown))
			break
		}
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ", ")
}

// parseIDs parses a comma- or whitespace-separated list of document ids.
func parseIDs(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

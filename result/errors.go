package result

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Category is the final classification of a reference link.
type Category string

const (
	CategoryOK      Category = "ok"
	CategoryBroken  Category = "broken"
	CategoryTimeout Category = "timeout"
)

// IsTimeoutError reports whether err should be treated as a timeout: a
// context deadline, a net.Error that says so, or any error whose message
// mentions "timeout".
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// Classify derives the category from the final check outcome. A received
// status decides on its own; otherwise the error does.
func Classify(status *int, err error) Category {
	if status != nil {
		if *status >= 400 {
			return CategoryBroken
		}
		return CategoryOK
	}
	if err == nil {
		return CategoryOK
	}
	if IsTimeoutError(err) {
		return CategoryTimeout
	}
	return CategoryBroken
}

// FormatCategory returns a human-readable label for a category.
func FormatCategory(cat Category) string {
	switch cat {
	case CategoryOK:
		return "Working"
	case CategoryBroken:
		return "Broken"
	case CategoryTimeout:
		return "Timeouts"
	default:
		return "Unknown"
	}
}

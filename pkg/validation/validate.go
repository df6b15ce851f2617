package validation

import (
	"fmt"
	"strings"
)

// Rules bounds user-supplied message fields. Installed once at startup
// from config via SetRules.
type Rules struct {
	// MaxContentBytes caps message content length; 0 means the default.
	MaxContentBytes int64
}

const defaultMaxContentBytes = 64 * 1024

var rules Rules

// SetRules installs the active validation rules.
func SetRules(r Rules) { rules = r }

// ValidateID checks an opaque participant or conversation id. The "~"
// separator is reserved for pair conversation ids and ":" for storage
// keys, so neither may appear in a participant id.
func ValidateID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id is required", kind)
	}
	if strings.ContainsAny(id, "~:") {
		return fmt.Errorf("%s id contains reserved characters", kind)
	}
	return nil
}

// ValidateContent rejects empty or whitespace-only content and content
// over the configured size limit.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is empty")
	}
	max := rules.MaxContentBytes
	if max <= 0 {
		max = defaultMaxContentBytes
	}
	if int64(len(content)) > max {
		return fmt.Errorf("content exceeds %d bytes", max)
	}
	return nil
}

package directive

import (
	"encoding/json"
	"fmt"

	"github.com/thirteen37/ngxconf/internal/path"
)

// previewLength caps the value preview in InputError messages.
const previewLength = 42

// InputError reports a directive value whose shape matches no directive type.
type InputError struct {
	// Path is the full path of the directive, including its name.
	Path  path.Path
	Value any
}

// Error implements error.
func (e *InputError) Error() string {
	return fmt.Sprintf("invalid value in %s: %s", e.Path, Preview(e.Value))
}

// Preview renders v as JSON, truncated to 42 characters followed by "...".
func Preview(v any) string {
	data, err := json.Marshal(v)
	text := string(data)
	if err != nil {
		text = fmt.Sprintf("%v", v)
	}
	if r := []rune(text); len(r) > previewLength {
		return string(r[:previewLength]) + "..."
	}
	return text
}

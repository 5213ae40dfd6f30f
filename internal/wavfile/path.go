package wavfile

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// Extension is appended to every output path.
const Extension = ".wav"

// TrimExtension strips a trailing ".wav" (any case) from p.
func TrimExtension(p string) string {
	if len(p) >= len(Extension) && strings.EqualFold(p[len(p)-len(Extension):], Extension) {
		return p[:len(p)-len(Extension)]
	}
	return p
}

// ResolvePath returns the first of base.wav, base_1.wav, base_2.wav, ...
// that does not exist yet.
func ResolvePath(fs afero.Fs, base string) (string, error) {
	candidate := base + Extension
	for counter := 1; ; counter++ {
		exists, err := afero.Exists(fs, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d%s", base, counter, Extension)
	}
}

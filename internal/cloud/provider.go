package cloud

import (
	"strings"

	appErr "github.com/instanti8/engine/pkg/errors"
)

// Provider identifies a supported cloud.
type Provider string

const (
	AWS   Provider = "aws"
	Azure Provider = "azure"
	GCP   Provider = "gcp"
)

// All lists supported providers in inference priority order.
var All = []Provider{AWS, Azure, GCP}

func (p Provider) String() string { return string(p) }

// Parse normalizes a provider name case-insensitively.
func Parse(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case AWS, Azure, GCP:
		return p, nil
	}
	return "", appErr.Newf(appErr.CodeUnsupportedProvider, "unsupported provider %q", s).WithMeta("provider", s)
}

var keywords = map[Provider][]string{
	AWS:   {"aws", "amazon"},
	Azure: {"azure", "microsoft"},
	GCP:   {"gcp", "google"},
}

// Infer picks the target provider from a free-text description. The first
// provider in All whose keyword occurs wins; AWS is the fallback.
func Infer(description string) Provider {
	d := strings.ToLower(description)
	for _, p := range All {
		for _, kw := range keywords[p] {
			if strings.Contains(d, kw) {
				return p
			}
		}
	}
	return AWS
}

package fetcher

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/fa_fetcher/internal/iconstore"
	"gopkg.in/yaml.v3"
)

const (
	CodeValidation       = "VALIDATION"
	CodeBrowser          = "BROWSER"
	CodeSession          = "SESSION"
	CodeSelectorTimeout  = "SELECTOR_TIMEOUT"
	CodeDownloadNotFound = "DOWNLOAD_NOT_FOUND"
	CodeFilesystem       = "FILESYSTEM"
	CodeBusy             = "BUSY"
	CodeNotFound         = "NOT_FOUND"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// Version is an icon set version. Manifests may write it as a number or a
// string; both decode to the same text.
type Version string

func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Version(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("version must be a string or number: %s", data)
	}
	*v = Version(n.String())
	return nil
}

// Schema lets request validation accept both forms before decoding.
func (Version) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Icon set version, e.g. 6 or \"6.5.1\"",
		OneOf: []*huma.Schema{
			{Type: huma.TypeString, MinLength: ptr(1)},
			{Type: huma.TypeNumber},
		},
	}
}

func ptr[T any](v T) *T { return &v }

func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: version must be a scalar", node.Line)
	}
	*v = Version(node.Value)
	return nil
}

// IconRequest identifies one icon to fetch.
type IconRequest struct {
	Name    string  `json:"name" yaml:"name"`
	Style   string  `json:"style" yaml:"style"`
	Version Version `json:"version" yaml:"version"`
	Color   string  `json:"color,omitempty" yaml:"color,omitempty"`
}

// Validate reports the first missing identifying field, or a name, style
// and version that cannot form a stored file name.
func (r IconRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return newError(CodeValidation, "icon name is required", nil)
	case strings.TrimSpace(r.Style) == "":
		return newError(CodeValidation, "icon style is required", nil)
	case strings.TrimSpace(string(r.Version)) == "":
		return newError(CodeValidation, "icon version is required", nil)
	}
	if err := iconstore.ValidateFileName(r.FileName()); err != nil {
		return newError(CodeValidation, "icon name, style and version may only use letters, digits, '.', '_' and '-'", err)
	}
	return nil
}

// FileName is the name the icon is stored under.
func (r IconRequest) FileName() string {
	return iconstore.FileName(r.Name, r.Style, string(r.Version))
}

// ParseIconArg parses "name:style:version[:color]".
func ParseIconArg(arg string) (IconRequest, error) {
	parts := strings.SplitN(arg, ":", 4)
	if len(parts) < 3 {
		return IconRequest{}, newError(CodeValidation, fmt.Sprintf("icon %q: want name:style:version[:color]", arg), nil)
	}
	req := IconRequest{
		Name:    strings.TrimSpace(parts[0]),
		Style:   strings.TrimSpace(parts[1]),
		Version: Version(strings.TrimSpace(parts[2])),
	}
	if len(parts) == 4 {
		req.Color = strings.TrimSpace(parts[3])
	}
	if err := req.Validate(); err != nil {
		return IconRequest{}, err
	}
	return req, nil
}

// IconResult is one successfully fetched icon.
type IconResult struct {
	Name    string  `json:"name"`
	Style   string  `json:"style"`
	Version Version `json:"version"`
	SVG     string  `json:"svg"`
	Path    string  `json:"path,omitempty"`
}

// Options selects where results go. Both may be set. RunID, when set, is
// used instead of a generated run id.
type Options struct {
	OutputDir  string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	ReturnSVGs bool   `json:"return_svgs,omitempty" yaml:"return_svgs,omitempty"`
	RunID      string `json:"-" yaml:"-"`
}

// Credentials are passed through to the login form and never logged.
type Credentials struct {
	Email    string
	Password string
}

// ItemFailure records why an icon was skipped.
type ItemFailure struct {
	Name    string  `json:"name"`
	Style   string  `json:"style"`
	Version Version `json:"version"`
	Code    string  `json:"code"`
	Error   string  `json:"error"`
}

// Run summarizes one batch.
type Run struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Requested  int           `json:"requested"`
	Succeeded  int           `json:"succeeded"`
	Failures   []ItemFailure `json:"failures"`
	Results    []IconResult  `json:"results,omitempty"`
}

// Summary is a one-line human description of the run.
func (r Run) Summary() string {
	return "fetched " + strconv.Itoa(r.Succeeded) + "/" + strconv.Itoa(r.Requested) +
		" icons (" + strconv.Itoa(len(r.Failures)) + " failed) in " +
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}

package replay

import (
	"fmt"
	"strings"

	"github.com/valyala/fastjson"

	"mercator-hq/trafficdump/pkg/capture/redact"
)

// VerifyOptions lists the properties a written replay file must have on
// top of being schema-valid.
type VerifyOptions struct {
	// SensitiveFields must only ever carry the redaction placeholder.
	SensitiveFields []string

	// ClientHTTPVersion, when set, must match the session's http layer.
	ClientHTTPVersion string

	// ClientProtocols, when set, must all appear in the protocol stack.
	ClientProtocols []string
}

// VerifyError reports a content check that a replay file failed.
type VerifyError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *VerifyError) Error() string {
	return fmt.Sprintf("replay verification failed at %s: %s", e.Path, e.Message)
}

// Verify validates data against the replay format and then checks the
// properties in opts.
func Verify(data []byte, opts VerifyOptions) error {
	p := parserPool.Get()
	defer parserPool.Put(p)

	root, err := p.ParseBytes(data)
	if err != nil {
		return schemaErr("$", "invalid JSON: %v", err)
	}
	if err := validateDocument(root); err != nil {
		return err
	}

	policy := redact.NewPolicy(opts.SensitiveFields)
	if len(opts.SensitiveFields) == 0 {
		policy = nil
	}

	for i, s := range root.GetArray("sessions") {
		path := fmt.Sprintf("sessions[%d]", i)
		if err := verifyProtocol(path, s, opts); err != nil {
			return err
		}
		for j, tx := range s.GetArray("transactions") {
			txPath := fmt.Sprintf("%s.transactions[%d]", path, j)
			if err := verifyRedaction(txPath, tx, policy); err != nil {
				return err
			}
		}
	}
	return nil
}

// VerifyRedaction checks that every header named in fields carries the
// placeholder rather than an original value.
func VerifyRedaction(data []byte, fields []string) error {
	return Verify(data, VerifyOptions{SensitiveFields: fields})
}

func verifyProtocol(path string, s *fastjson.Value, opts VerifyOptions) error {
	stack := s.GetArray("protocol")
	names := make(map[string]string, len(stack))
	for _, n := range stack {
		names[string(n.GetStringBytes("name"))] = string(n.GetStringBytes("version"))
	}

	if opts.ClientHTTPVersion != "" {
		version, ok := names["http"]
		if !ok {
			return &VerifyError{Path: path + ".protocol", Message: "no http layer"}
		}
		if version != opts.ClientHTTPVersion {
			return &VerifyError{
				Path:    path + ".protocol",
				Message: fmt.Sprintf("http version %q, expected %q", version, opts.ClientHTTPVersion),
			}
		}
	}

	for _, want := range opts.ClientProtocols {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		if _, ok := names[want]; !ok {
			return &VerifyError{Path: path + ".protocol", Message: fmt.Sprintf("missing %q layer", want)}
		}
	}
	return nil
}

func verifyRedaction(path string, tx *fastjson.Value, policy *redact.Policy) error {
	if policy == nil {
		return nil
	}
	for _, key := range []string{"client-request", "proxy-request", "server-response", "proxy-response"} {
		m := tx.Get(key)
		if m == nil {
			continue
		}
		for i, f := range m.GetArray("headers", "fields") {
			pair, _ := f.Array()
			name, value := string(pair[0].GetStringBytes()), string(pair[1].GetStringBytes())
			if policy.IsSensitive(name) && !redact.IsPlaceholder(value) {
				return &VerifyError{
					Path:    fmt.Sprintf("%s.%s.headers.fields[%d]", path, key, i),
					Message: fmt.Sprintf("sensitive field %q was not redacted", name),
				}
			}
		}
	}
	return nil
}

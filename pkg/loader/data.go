package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-domtpl/internal/fetch"
)

// DataOptions customise a remote data fetch. They are usually decoded from a
// directive attribute.
type DataOptions struct {
	Method  string
	Headers map[string]string
	Body    any
	// Format forces the decoder: json, yaml or text. Inferred otherwise.
	Format string
}

// DataOptionsFrom reads method, headers, body and format keys from a map.
func DataOptionsFrom(values map[string]any) DataOptions {
	var opts DataOptions
	if values == nil {
		return opts
	}
	if v, ok := values["method"].(string); ok {
		opts.Method = v
	}
	if v, ok := values["format"].(string); ok {
		opts.Format = v
	}
	if headers, ok := values["headers"].(map[string]any); ok {
		opts.Headers = make(map[string]string, len(headers))
		for key, value := range headers {
			opts.Headers[key] = fmt.Sprint(value)
		}
	}
	opts.Body = values["body"]
	return opts
}

// FetchData loads ref the way LoadURL does and decodes the payload as JSON,
// YAML or plain text.
func (l *Loader) FetchData(ctx context.Context, ref string, opts DataOptions) (any, error) {
	src := l.Reference(ref)

	var (
		data        []byte
		contentType string
		err         error
	)
	switch src.Kind() {
	case KindURL:
		body, berr := encodeBody(opts.Body)
		if berr != nil {
			return nil, berr
		}
		headers := opts.Headers
		if len(body) > 0 && headers["Content-Type"] == "" {
			headers = mergeHeader(headers, "Content-Type", "application/json")
		}
		var resp fetch.Response
		resp, err = l.fetcher.HTTP(ctx, src.Location(), fetch.Request{Method: opts.Method, Headers: headers, Body: body})
		data, contentType = resp.Body, resp.ContentType
	case KindFS:
		data, err = l.fetcher.FS(ctx, src.Location())
	default:
		data, err = l.fetcher.File(ctx, src.Location())
	}
	if err != nil {
		return nil, fmt.Errorf("loader: fetch data %q: %w", ref, err)
	}
	return decode(data, formatOf(opts.Format, contentType, src.Location()))
}

func formatOf(explicit, contentType, location string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return "json"
	case strings.Contains(ct, "yaml"):
		return "yaml"
	}
	switch strings.ToLower(path.Ext(strings.SplitN(location, "?", 2)[0])) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	if ct == "" {
		return "json"
	}
	return "text"
}

func decode(data []byte, format string) (any, error) {
	switch format {
	case "json":
		var out any
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("loader: decode json: %w", err)
		}
		return normalizeNumbers(out), nil
	case "yaml":
		var out any
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("loader: decode yaml: %w", err)
		}
		return out, nil
	case "text":
		return string(data), nil
	}
	return nil, fmt.Errorf("loader: unsupported data format %q", format)
}

func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for key, item := range v {
			v[key] = normalizeNumbers(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeNumbers(item)
		}
		return v
	}
	return value
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("loader: encode body: %w", err)
	}
	return data, nil
}

func mergeHeader(headers map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out[key] = value
	return out
}

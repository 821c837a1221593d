// Package adminserver reads the monitor command of the ZooKeeper AdminServer
// (3.5+) over HTTP and turns it into the same report mntr produces.
package adminserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jandubois/zkcheck/internal/report"
)

// MonitorPath is the monitor command resource.
const MonitorPath = "/commands/monitor"

// Getter fetches raw response bodies.
type Getter interface {
	Get(ctx context.Context, target string) ([]byte, error)
}

// CommandError is the error field of an AdminServer response.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("admin command %s failed: %s", e.Command, e.Message)
}

// MonitorURL turns a base URL or a full monitor URL into the monitor URL.
func MonitorURL(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(endpoint, MonitorPath) {
		return endpoint
	}
	return endpoint + MonitorPath
}

// Monitor fetches the monitor command and parses it with rules.
func Monitor(ctx context.Context, client Getter, endpoint string, rules *report.Rules) (*report.Report, error) {
	body, err := client.Get(ctx, MonitorURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("admin server: %w", err)
	}
	raw, err := Flatten(body)
	if err != nil {
		return nil, err
	}
	return report.Parse(raw, rules)
}

// Flatten renders the scalar members of a JSON object as "key<TAB>value"
// lines in key order. Nested objects and arrays are skipped.
func Flatten(body []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("decode monitor response: %w", err)
	}

	if msg, ok := doc["error"].(string); ok && msg != "" {
		command, _ := doc["command"].(string)
		return "", &CommandError{Command: command, Message: msg}
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		var value string
		switch v := doc[k].(type) {
		case json.Number:
			value = v.String()
		case string:
			value = v
		case bool:
			value = fmt.Sprint(v)
		default:
			continue
		}
		sb.WriteString(k)
		sb.WriteByte('\t')
		sb.WriteString(value)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

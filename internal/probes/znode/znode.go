// Package znode provides the znode check. Unlike the other checks it opens a
// ZooKeeper client session instead of using four-letter words.
package znode

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/zap"

	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/probe"
)

// Name is the check subcommand name.
const Name = "znode"

// Reader is the part of *zk.Conn the check uses.
type Reader interface {
	Exists(path string) (bool, *zk.Stat, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Children(path string) ([]string, *zk.Stat, error)
}

var _ Reader = (*zk.Conn)(nil)

// GetDescription returns the check description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "znode",
		Description: "Check that a znode exists, optionally matching its value or children",
		Version:     "1.0.0",
		Subcommand:  Name,
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"servers": {
					Type:        "string",
					Description: "Comma separated ZooKeeper connect string",
				},
				"znode": {
					Type:        "string",
					Description: "Path of the znode",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"check-value": {
					Type:        "string",
					Description: "Regular expression the znode data must match",
				},
				"check-child": {
					Type:        "string",
					Description: "Regular expression at least one child name must match",
				},
			},
		},
	}
}

// Connect opens a session and waits until it is established.
func Connect(servers []string, timeout time.Duration, logger *zap.Logger) (*zk.Conn, error) {
	conn, events, err := zk.Connect(servers, timeout, zk.WithLogger(zap.NewStdLog(logger)))
	if err != nil {
		return nil, fmt.Errorf("connect to %v: %w", servers, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev := <-events:
			if ev.State == zk.StateHasSession {
				return conn, nil
			}
			if ev.State == zk.StateAuthFailed || ev.State == zk.StateExpired {
				conn.Close()
				return nil, fmt.Errorf("connect to %v: %s", servers, ev.State)
			}
		case <-timer.C:
			conn.Close()
			return nil, fmt.Errorf("connect to %v: no session within %s", servers, timeout)
		}
	}
}

// Run executes the check against path.
func Run(r Reader, path, valuePattern, childPattern string) *probe.Result {
	if path == "" {
		return probe.Unknown("znode argument is required")
	}

	var valueRe, childRe *regexp.Regexp
	var err error
	if valuePattern != "" {
		if valueRe, err = regexp.Compile(valuePattern); err != nil {
			return probe.Unknown(fmt.Sprintf("invalid value regexp: %v", err))
		}
	}
	if childPattern != "" {
		if childRe, err = regexp.Compile(childPattern); err != nil {
			return probe.Unknown(fmt.Sprintf("invalid child regexp: %v", err))
		}
	}

	exists, stat, err := r.Exists(path)
	if err != nil {
		return probe.Critical(fmt.Sprintf("stat %s: %v", path, err))
	}
	if !exists {
		return probe.Critical(fmt.Sprintf("znode %s does not exist", path))
	}

	outcomes := []evaluate.Outcome{evaluate.Pass("exists", fmt.Sprintf("znode %s exists", path))}

	if valueRe != nil {
		outcomes = append(outcomes, checkValue(r, path, valueRe))
	}
	if childRe != nil {
		outcomes = append(outcomes, checkChildren(r, path, childRe))
	}

	result := evaluate.Aggregate(outcomes...)
	if stat != nil {
		result.Metrics = map[string]any{
			"data_length":  stat.DataLength,
			"num_children": stat.NumChildren,
			"version":      stat.Version,
		}
	}
	return result
}

func checkValue(r Reader, path string, re *regexp.Regexp) evaluate.Outcome {
	data, _, err := r.Get(path)
	if errors.Is(err, zk.ErrNoNode) {
		return evaluate.Fail("value", probe.StatusCritical, fmt.Sprintf("znode %s does not exist", path))
	}
	if err != nil {
		return evaluate.Fail("value", probe.StatusCritical, fmt.Sprintf("get %s: %v", path, err))
	}
	if re.Match(data) {
		return evaluate.Pass("value", fmt.Sprintf("%s value matched regexp '%s'", path, re))
	}
	return evaluate.Fail("value", probe.StatusCritical, fmt.Sprintf("%s value didn't match regexp '%s'", path, re))
}

func checkChildren(r Reader, path string, re *regexp.Regexp) evaluate.Outcome {
	children, _, err := r.Children(path)
	if err != nil {
		return evaluate.Fail("children", probe.StatusCritical, fmt.Sprintf("list children of %s: %v", path, err))
	}
	for _, child := range children {
		if re.MatchString(child) {
			return evaluate.Pass("children", fmt.Sprintf("%s has child regexp match for '%s'", path, re))
		}
	}
	return evaluate.Fail("children", probe.StatusCritical, fmt.Sprintf("%s doesn't have child regexp match for '%s'", path, re))
}

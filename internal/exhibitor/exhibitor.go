// Package exhibitor reads cluster membership from an Exhibitor
// management endpoint.
package exhibitor

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jandubois/zkcheck/internal/webclient"
)

// StatusPath is the cluster status resource, relative to the Exhibitor base URL.
const StatusPath = "/exhibitor/v1/cluster/status"

// Member is one entry of the cluster status listing.
type Member struct {
	Hostname    string `json:"hostname"`
	IsLeader    bool   `json:"isLeader"`
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// ClusterView is the membership as the management endpoint reports it.
type ClusterView struct {
	Members []Member
}

// Size is the number of listed members.
func (v ClusterView) Size() int {
	return len(v.Members)
}

// Leaders counts members flagged as leader.
func (v ClusterView) Leaders() int {
	n := 0
	for _, m := range v.Members {
		if m.IsLeader {
			n++
		}
	}
	return n
}

// Getter is the part of webclient.Client used here.
type Getter interface {
	GetJSON(ctx context.Context, target string, v any) error
}

var _ Getter = (*webclient.Client)(nil)

// StatusURL returns endpoint unchanged when it already names a resource,
// and appends StatusPath to a bare base URL.
func StatusURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	if u.Path != "" && u.Path != "/" {
		return endpoint
	}
	u.Path = StatusPath
	return u.String()
}

// Fetch retrieves the cluster view from endpoint.
func Fetch(ctx context.Context, client Getter, endpoint string) (ClusterView, error) {
	var members []Member
	if err := client.GetJSON(ctx, StatusURL(endpoint), &members); err != nil {
		return ClusterView{}, fmt.Errorf("exhibitor status: %w", err)
	}
	return ClusterView{Members: members}, nil
}

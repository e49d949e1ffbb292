package replication

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/raft"
	"github.com/sirupsen/logrus"
)

// JoinRequest asks a leader to add a node as a voter.
type JoinRequest struct {
	NodeID string `json:"node_id"`
	Addr   string `json:"addr"`
}

// JoinPath is the HTTP route a leader serves join requests on.
const JoinPath = "/v1/cluster/join"

// WaitForLeader polls until the cluster reports a leader or ctx ends.
func WaitForLeader(ctx context.Context, node interface{ Leader() raft.ServerAddress }) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if node.Leader() != "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for raft leader: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Join asks each peer in turn to add this node, retrying the whole list
// until one accepts or ctx ends. Peers are HTTP base URLs.
func Join(ctx context.Context, client *http.Client, peers []string, req JoinRequest, logger logrus.FieldLogger) error {
	if len(peers) == 0 {
		return errors.New("join: no peers configured")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	backoff := 500 * time.Millisecond
	for {
		for _, peer := range peers {
			err := joinPeer(ctx, client, peer, body)
			if err == nil {
				logger.WithField("peer", peer).Info("joined raft cluster")
				return nil
			}
			logger.WithError(err).WithField("peer", peer).Warn("join attempt failed")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("join: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 10*time.Second)
	}
}

func joinPeer(ctx context.Context, client *http.Client, peer string, body []byte) error {
	url := strings.TrimRight(peer, "/") + JoinPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

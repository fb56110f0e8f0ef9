package repohost

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"pagesmith/app/pkg/logger"
)

// pagesEnvironment is the deployment environment Pages pushes create.
const pagesEnvironment = "github-pages"

// WaitForDeployment polls until the deployment for sha reaches a
// terminal state. A terminal failure returns false immediately; an
// exhausted budget also returns false, which callers treat as
// unconfirmed rather than failed.
func (c *Client) WaitForDeployment(ctx context.Context, repo Repo, sha string) bool {
	logger.Info("Waiting for Pages deployment of commit %s", truncate(sha, 8))

	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		state, found := c.deploymentState(ctx, repo, sha)
		if found {
			switch state {
			case "success":
				logger.Info("Deployment confirmed after %d polls", attempt)
				return true
			case "failure", "error":
				logger.Error("Deployment reached terminal state %q", state)
				return false
			default:
				logger.Debug("Deployment state %q, polling again", state)
			}
		} else {
			logger.Debug("No matching deployment yet (attempt %d/%d)", attempt, c.pollAttempts)
		}

		if attempt < c.pollAttempts {
			select {
			case <-ctx.Done():
				return false
			default:
			}
			c.sleep(c.pollInterval)
		}
	}

	logger.Error("Deployment not confirmed after %d polls", c.pollAttempts)
	return false
}

// deploymentState finds the deployment matching sha in the Pages
// environment and returns its latest status state.
func (c *Client) deploymentState(ctx context.Context, repo Repo, sha string) (string, bool) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/deployments", repo.FullName), "")
	if err != nil {
		logger.Debug("List deployments failed: %v", err)
		return "", false
	}

	var deploymentID int64
	found := false
	gjson.Parse(body).ForEach(func(_, dep gjson.Result) bool {
		if dep.Get("sha").String() == sha && dep.Get("environment").String() == pagesEnvironment {
			deploymentID = dep.Get("id").Int()
			found = true
			return false
		}
		return true
	})
	if !found {
		return "", false
	}

	statuses, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/deployments/%d/statuses", repo.FullName, deploymentID), "")
	if err != nil {
		logger.Debug("List deployment statuses failed: %v", err)
		return "", false
	}
	state := gjson.Get(statuses, "0.state").String()
	if state == "" {
		return "", false
	}
	return state, true
}

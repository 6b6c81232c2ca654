// Package discord delivers aggregated commit notifications to a Discord
// webhook. Each call to Notify produces exactly one embed message covering
// all new commits of a single branch.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"commitwatch/logger"
	"commitwatch/models"
	"commitwatch/retry"

	"go.uber.org/zap"
)

// ErrUnexpectedStatus indicates a webhook response other than 204 No Content.
var ErrUnexpectedStatus = fmt.Errorf("unexpected webhook response status")

const (
	requestTimeout = 10 * time.Second
	// maxMessageLen bounds the displayed commit message; longer messages are
	// cut at truncateAt and suffixed with an ellipsis.
	maxMessageLen = 55
	truncateAt    = 52
)

// Notifier posts embed messages to a single Discord webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	policy     retry.Policy
	clock      func() time.Time
}

type payload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Description string       `json:"description"`
	Author      embedAuthor  `json:"author"`
	Footer      *embedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

// NewNotifier creates a notifier posting to webhookURL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		policy:     retry.Default(),
		clock:      time.Now,
	}
}

// Notify sends one aggregated message for the new commits of a branch.
// commits must be ordered oldest-first. prevCursor is the cursor id the delta
// was computed against; it is empty for a branch observed for the first time.
// The cursor must only advance after Notify returns nil.
func (n *Notifier) Notify(ctx context.Context, repoKey, branch, prevCursor string, commits []models.Commit) error {
	if len(commits) == 0 {
		return nil
	}

	body := n.render(repoKey, branch, prevCursor, commits)
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	err = n.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", n.webhookURL, bytes.NewReader(data))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent {
			return retry.Permanent(fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
		}
		return nil
	})
	if err != nil {
		// Log the full payload so a dropped notification can be replayed by hand.
		logger.Error("Failed to dispatch notification",
			zap.Error(err),
			zap.String("repository", repoKey),
			zap.String("branch", branch),
			zap.Int("commit_count", len(commits)),
			zap.String("payload", string(data)))
		return fmt.Errorf("failed to dispatch notification for %s@%s: %w", repoKey, branch, err)
	}

	logger.Info("Notification dispatched",
		zap.String("repository", repoKey),
		zap.String("branch", branch),
		zap.Int("commit_count", len(commits)))

	return nil
}

func (n *Notifier) render(repoKey, branch, prevCursor string, commits []models.Commit) payload {
	count := len(commits)
	noun := "commits"
	if count == 1 {
		noun = "commit"
	}
	title := fmt.Sprintf("[%s:%s] %d new %s", repoKey, branch, count, noun)

	var link string
	if count == 1 {
		link = commits[0].HTMLURL
	} else {
		base := prevCursor
		if base == "" {
			base = commits[0].ID
		}
		link = fmt.Sprintf("https://github.com/%s/compare/%s...%s", repoKey, base, commits[count-1].ID)
	}

	lines := make([]string, 0, count)
	for _, c := range commits {
		lines = append(lines, fmt.Sprintf("[`%s`](%s) %s - %s",
			c.ShortID(), c.HTMLURL, truncateMessage(c.Message), c.AuthorName))
	}

	first := commits[0]
	return payload{
		Embeds: []embed{{
			Title:       title,
			URL:         link,
			Description: strings.Join(lines, "\n"),
			Author: embedAuthor{
				Name:    first.AuthorName,
				URL:     first.AuthorURL,
				IconURL: first.AvatarURL,
			},
			Footer:    &embedFooter{Text: repoKey},
			Timestamp: n.clock().UTC().Format(time.RFC3339),
		}},
	}
}

// truncateMessage reduces a commit message to its first line and caps the
// display length.
func truncateMessage(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	runes := []rune(msg)
	if len(runes) <= maxMessageLen {
		return msg
	}
	return string(runes[:truncateAt]) + "..."
}

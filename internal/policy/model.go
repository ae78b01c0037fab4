package policy

// model.go — model-scored policy. Builds a textual description of the
// market's minute-by-minute probability history plus the feed summary,
// sends it to an OpenAI-compatible scoring endpoint and parses the JSON
// verdict. Every failure mode collapses to SKIP: a mute scorer must never
// halt or trade.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/updown/internal/domain"
)

// ModelConfig points the policy at a scoring service.
type ModelConfig struct {
	BaseURL string // e.g. https://api.openai.com/v1
	APIKey  string
	Model   string
}

// ModelPolicy implements ports.Policy via an external scoring service.
type ModelPolicy struct {
	cfg  ModelConfig
	http *http.Client
}

// NewModelPolicy creates the policy with a 15s request deadline.
func NewModelPolicy(cfg ModelConfig) *ModelPolicy {
	return &ModelPolicy{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *ModelPolicy) Name() string { return "model" }

// chat wire types (request and the slice of the response we read).
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// verdict is the JSON object the scorer is asked to produce.
type verdict struct {
	Action     string `json:"action"`
	Confidence string `json:"confidence"`
	Pattern    string `json:"pattern"`
	Reasoning  string `json:"reasoning"`
}

// Decide scores the snapshot. Any failure yields SKIP.
func (p *ModelPolicy) Decide(ctx context.Context, snapshot domain.MarketSnapshot, feed domain.PriceContext) domain.Decision {
	skip := func(reason string) domain.Decision {
		return domain.Decision{
			Action:     domain.ActionSkip,
			Confidence: domain.ConfidenceLow,
			Reasoning:  reason,
		}.Normalize()
	}

	prompt := buildPrompt(snapshot, feed)

	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return skip("marshal: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(p.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return skip("request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.http.Do(req)
	if err != nil {
		slog.Warn("model policy: request failed", "err", err)
		return skip("scorer unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("model policy: bad status", "status", resp.StatusCode)
		return skip(fmt.Sprintf("scorer status %d", resp.StatusCode))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return skip("decode: " + err.Error())
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return skip("empty scorer reply")
	}

	v, ok := parseVerdict(cr.Choices[0].Message.Content)
	if !ok {
		return skip("unparseable scorer reply")
	}

	return domain.Decision{
		Action:     domain.ParseAction(v.Action),
		Confidence: domain.ParseConfidence(v.Confidence),
		Pattern:    v.Pattern,
		Reasoning:  v.Reasoning,
	}.Normalize()
}

const systemPrompt = `You score 15-minute binary Up/Down prediction markets. ` +
	`Reply with a single JSON object: {"action":"BUY_YES|BUY_NO|SKIP",` +
	`"confidence":"LOW|MEDIUM|HIGH","pattern":"...","reasoning":"..."}. ` +
	`No prose outside the JSON.`

// buildPrompt renders the market history and feed context for the scorer.
func buildPrompt(snapshot domain.MarketSnapshot, feed domain.PriceContext) string {
	var b strings.Builder

	m := snapshot.Market
	fmt.Fprintf(&b, "Market: %s\n", m.Question)
	fmt.Fprintf(&b, "Closes in %.1f minutes.\n\n", m.MinutesLeft(snapshot.FetchedAt))

	if yes := snapshot.YesToken.Price.Mid; yes != nil {
		fmt.Fprintf(&b, "YES mid: %.3f\n", *yes)
	}
	if no := snapshot.NoToken.Price.Mid; no != nil {
		fmt.Fprintf(&b, "NO mid: %.3f\n", *no)
	}
	if book := snapshot.YesToken.Book; book != nil {
		fmt.Fprintf(&b, "YES book: bid %.3f ask %.3f spread %.3f bid/ask vol %.0f/%.0f\n",
			book.BestBid, book.BestAsk, book.Spread, book.BidVolume, book.AskVolume)
	}

	if len(snapshot.PriceHistory) > 0 {
		b.WriteString("\nYES probability by minute (oldest first):\n")
		hist := snapshot.PriceHistory
		if len(hist) > 15 {
			hist = hist[len(hist)-15:]
		}
		prev := 0.0
		for i, p := range hist {
			if i == 0 {
				fmt.Fprintf(&b, "  %s  %.3f\n", p.At.Format("15:04"), p.Price)
			} else {
				fmt.Fprintf(&b, "  %s  %.3f (%+.3f)\n", p.At.Format("15:04"), p.Price, p.Price-prev)
			}
			prev = p.Price
		}
	}

	b.WriteString("\nReference feed: ")
	b.WriteString(feed.Describe())
	b.WriteString("\n")
	return b.String()
}

// parseVerdict extracts the JSON object from the reply, tolerating code
// fences and surrounding prose.
func parseVerdict(content string) (verdict, bool) {
	s := strings.TrimSpace(content)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}

	var v verdict
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return verdict{}, false
	}
	if v.Action == "" {
		return verdict{}, false
	}
	return v, true
}

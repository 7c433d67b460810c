package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pharma-quotes/constants"
	"github.com/joseph-ayodele/pharma-quotes/internal/llm"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

// Extract implements llm.Extractor using chat/completions. Images go in an
// image_url part, PDF pages in a file part; both carry a base64 data URL.
func (c *Client) Extract(ctx context.Context, unit segment.Unit) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", "openai",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"unit", unit.Index,
		"mime", unit.MIMEType,
		"bytes", len(unit.Data),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.ExtractionPrompt},
				attachment(unit),
			}},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("no choices in openai response")
	}
	content := cc.Choices[0].Message.Content

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"unit", unit.Index,
		"text_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func attachment(unit segment.Unit) map[string]any {
	url := llm.DataURL(unit.MIMEType, unit.Data)
	if constants.FormatForMIME(unit.MIMEType) == constants.PDF {
		return map[string]any{
			"type": "file",
			"file": map[string]any{
				"filename":  fmt.Sprintf("page-%d.pdf", unit.Index+1),
				"file_data": url,
			},
		}
	}
	return map[string]any{
		"type":      "image_url",
		"image_url": map[string]any{"url": url},
	}
}

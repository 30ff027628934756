package soda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DatasetInfo is the subset of the Socrata views metadata document the
// fetcher reports before a run.
type DatasetInfo struct {
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	RowsUpdatedAt int64        `json:"rowsUpdatedAt"`
	Columns       []ColumnInfo `json:"columns"`
}

// ColumnInfo describes one dataset column.
type ColumnInfo struct {
	Name         string `json:"name"`
	FieldName    string `json:"fieldName"`
	DataTypeName string `json:"dataTypeName"`
}

// DatasetInfo fetches dataset metadata from the views endpoint.
//
// This is a best-effort probe: callers are expected to log failures and
// continue, never to abort a fetch because metadata was unavailable.
func (c *Client) DatasetInfo(ctx context.Context) (*DatasetInfo, error) {
	url := fmt.Sprintf("%s/api/views/%s.json", c.config.BaseURL, c.config.DatasetID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    resp.Status,
		}
	}

	var info DatasetInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	c.logger.Info().
		Str("name", info.Name).
		Int("columns", len(info.Columns)).
		Msg("Dataset metadata retrieved")

	return &info, nil
}

package kgclient

import (
	"context"
	"fmt"
	"time"

	"github.com/reconhub/reconhub/internal/models"
)

const (
	rankingsPath      = "/WebService/Kingdoms.asmx/GetRankings"
	networthPath      = "/WebService/Kingdoms.asmx/GetNetworthOverTime"
	rankingsPageSize  = 300
	networthWindowHrs = 24
)

func (c *Client) rankingsURL() string {
	if c.cfg.RankingsURL != "" {
		return c.cfg.RankingsURL
	}
	return c.endpoint(rankingsPath)
}

// FetchRankings returns the current top-kingdoms snapshot, at most 300 rows.
// The token is optional; the public rankings endpoint serves without one.
func (c *Client) FetchRankings(ctx context.Context, token string) ([]models.KingdomRank, error) {
	payload := map[string]any{"page": 1, "pageSize": rankingsPageSize}

	parsed, err := c.postJSONToken(ctx, c.rankingsURL(), "/rankings", token, payload)
	if err != nil {
		return nil, fmt.Errorf("fetch rankings: %w", err)
	}

	rows := extractRankings(parsed, rankingsPageSize)
	now := time.Now().UTC()
	for i := range rows {
		rows[i].FetchedAt = now
	}
	return rows, nil
}

// FetchNetworthOverTime returns the last 24 hours of networth samples for a
// kingdom. Sample timestamps arrive without a zone and are treated as UTC.
func (c *Client) FetchNetworthOverTime(ctx context.Context, token string, kingdom models.TrackedKingdom) ([]models.NetworthPoint, error) {
	payload := map[string]any{"kingdomId": kingdom.KingdomID, "hours": networthWindowHrs}

	parsed, err := c.postJSONToken(ctx, c.endpoint(networthPath), "/rankings", token, payload)
	if err != nil {
		return nil, fmt.Errorf("fetch networth for %s: %w", kingdom.Name, err)
	}

	raw, ok := parsed["dataPoints"].([]any)
	if !ok {
		return nil, nil
	}

	points := make([]models.NetworthPoint, 0, len(raw))
	for _, item := range raw {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		nw, ok := asInt64(row["networth"])
		if !ok {
			continue
		}
		ts := asString(row["datetime"])
		if ts == "" {
			continue
		}
		tick, err := time.Parse("2006-01-02T15:04:05", ts)
		if err != nil {
			continue
		}
		points = append(points, models.NetworthPoint{
			Kingdom:  kingdom.Name,
			Networth: nw,
			TickTime: tick.UTC(),
		})
	}
	return points, nil
}

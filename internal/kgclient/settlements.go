package kgclient

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/reconhub/reconhub/internal/effects"
	"github.com/reconhub/reconhub/internal/models"
)

// Candidate settlement-list endpoints. The game has moved this call between
// services across versions; each is tried until one yields a list.
var settlementListPaths = []string{
	"/WebService/Settlement.asmx/GetSettlements",
	"/WebService/Kingdoms.asmx/GetSettlements",
	"/WebService/Kingdoms.asmx/GetKingdomSettlements",
	"/WebService/Kingdoms.asmx/GetKingdom",
	"/WebService/Kingdoms.asmx/GetCities",
	"/WebService/Kingdoms.asmx/GetTowns",
}

var settlementDetailPaths = []string{
	"/WebService/Settlement.asmx/GetSettlementBuildings",
	"/WebService/Settlement.asmx/GetSettlement",
	"/WebService/Settlement.asmx/GetSettlementInfo",
}

const detailFetchWorkers = 8

// payloadVariants enumerates the request shapes different endpoint versions
// accept; probing stops at the first one that returns settlements.
func payloadVariants(s Session) []map[string]any {
	base := s.basePayload()
	withExtra := func(k string, v any) map[string]any {
		m := make(map[string]any, len(base)+1)
		for key, val := range base {
			m[key] = val
		}
		m[k] = v
		return m
	}
	return []map[string]any{
		base,
		withExtra("continentId", -1),
		withExtra("startNumber", -1),
		withExtra("settlementId", -1),
		withExtra("cityId", -1),
		withExtra("townId", -1),
		{
			// Some endpoint versions capitalize the trailing ID.
			"accountID": fmt.Sprintf("%d", s.AccountID),
			"token":     s.Token,
			"kingdomID": s.KingdomID,
		},
	}
}

// FetchSettlements retrieves the player's settlements with per-settlement
// building details. The list call is probed across endpoints and payload
// variants; details are fetched concurrently, falling back through detail
// endpoints whenever a response carries only a town-tier summary row
// instead of real building data.
func (c *Client) FetchSettlements(ctx context.Context, session Session) ([]models.Settlement, error) {
	var settlements []models.Settlement
	var attempts []string

probe:
	for _, path := range settlementListPaths {
		for i, payload := range payloadVariants(session) {
			parsed, err := c.postJSON(ctx, c.endpoint(path), "/settlements", payload)
			if err != nil {
				attempts = append(attempts, fmt.Sprintf("%s v%d: %v", path, i, err))
				continue
			}
			settlements = extractSettlements(parsed)
			if len(settlements) > 0 {
				break probe
			}
			attempts = append(attempts, fmt.Sprintf("%s v%d: no settlement list", path, i))
		}
	}

	if len(settlements) == 0 {
		tail := "no attempts"
		if n := len(attempts); n > 0 {
			start := n - 4
			if start < 0 {
				start = 0
			}
			tail = strings.Join(attempts[start:], " | ")
		}
		return nil, fmt.Errorf("no settlements returned from game API, last attempts: %s", tail)
	}

	c.fetchBuildingDetails(ctx, session, settlements)
	return settlements, nil
}

// fetchBuildingDetails fills in Buildings for each settlement using a
// bounded worker pool. A settlement whose every detail endpoint fails or
// returns only summary rows keeps an empty building list; callers decide
// whether that warrants surfacing.
func (c *Client) fetchBuildingDetails(ctx context.Context, session Session, settlements []models.Settlement) {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, detailFetchWorkers)

	for i := range settlements {
		wg.Add(1)
		go func(s *models.Settlement) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			s.Buildings = c.fetchDetailForSettlement(ctx, session, s.SettlementID)
		}(&settlements[i])
	}
	wg.Wait()
}

func (c *Client) fetchDetailForSettlement(ctx context.Context, session Session, settlementID int64) []models.Building {
	payload := session.basePayload()
	payload["settlementId"] = settlementID

	for _, path := range settlementDetailPaths {
		parsed, err := c.postJSON(ctx, c.endpoint(path), "/settlements", payload)
		if err != nil {
			c.logger.Debug("settlement detail fetch failed",
				"settlement_id", settlementID,
				"path", path,
				"error", err,
			)
			continue
		}
		buildings := extractBuildings(parsed)
		if len(buildings) > 0 && !effects.IsSummaryOnlyBuildings(buildings) {
			return buildings
		}
	}
	return []models.Building{}
}

package kgclient

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/reconhub/reconhub/internal/models"
)

// The game API has no stable response schema: list keys, field names, and
// nesting vary between endpoints and template versions. Extraction therefore
// scans decoded payloads for the first list under any known key, with a
// breadth-first walk as the net under that.

// unwrapD normalizes the {"d": "<stringified json>"} envelope many ASMX
// endpoints wrap their payloads in.
func unwrapD(raw map[string]any) map[string]any {
	d, ok := raw["d"]
	if !ok {
		return raw
	}
	if s, isString := d.(string); isString {
		var inner map[string]any
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			return inner
		}
		return raw
	}
	if m, isMap := d.(map[string]any); isMap {
		return m
	}
	return raw
}

// extractList walks the payload breadth-first and returns the first list
// found under any of the given keys (case-insensitive).
func extractList(payload map[string]any, keys []string) []any {
	keyset := make(map[string]bool, len(keys))
	for _, k := range keys {
		keyset[strings.ToLower(k)] = true
	}

	queue := []any{payload}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		switch node := cur.(type) {
		case map[string]any:
			for k, v := range node {
				if keyset[strings.ToLower(k)] {
					if list, ok := v.([]any); ok {
						return list
					}
				}
				switch v.(type) {
				case map[string]any, []any:
					queue = append(queue, v)
				}
			}
		case []any:
			for _, item := range node {
				switch item.(type) {
				case map[string]any, []any:
					queue = append(queue, item)
				}
			}
		}
	}
	return nil
}

var settlementListKeys = []string{
	"settlements", "cities", "towns",
	"kingdomSettlements", "settlementList", "cityList", "townList",
	"kingdomCities", "kingdomTowns",
}

var buildingListKeys = []string{
	"buildings", "settlementBuildings", "cityBuildings", "townBuildings",
	"buildingList", "settlementBuildingList", "cityBuildingList",
	"townBuildingList", "slots",
}

// extractSettlements pulls settlement rows out of a variant payload,
// falling back to a scan for anything that looks like a settlement object.
func extractSettlements(payload map[string]any) []models.Settlement {
	var out []models.Settlement

	parseItem := func(item any) {
		m, ok := item.(map[string]any)
		if !ok {
			return
		}
		sid, ok := firstInt64(m, "id", "settlementId", "cityId", "townId")
		if !ok {
			return
		}
		name := firstString(m, "name", "settlementName", "cityName", "townName")
		if name == "" {
			name = "Settlement " + strconv.FormatInt(sid, 10)
		}
		out = append(out, models.Settlement{SettlementID: sid, Name: name})
	}

	for _, item := range extractList(payload, settlementListKeys) {
		parseItem(item)
	}
	if len(out) > 0 {
		return out
	}

	// Fallback: scan generic lists for objects carrying a settlement id key.
	queue := []any{payload}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		switch node := cur.(type) {
		case map[string]any:
			for _, v := range node {
				switch v.(type) {
				case map[string]any, []any:
					queue = append(queue, v)
				}
			}
		case []any:
			for _, item := range node {
				if m, ok := item.(map[string]any); ok {
					if _, has := firstInt64(m, "settlementId", "cityId", "townId"); has {
						parseItem(m)
					}
				}
				switch item.(type) {
				case map[string]any, []any:
					queue = append(queue, item)
				}
			}
		}
	}
	return out
}

// extractBuildings pulls building rows out of a settlement detail payload.
// Effect descriptions use [LEVEL] placeholders, which are substituted with
// the row's actual level so downstream percentage extraction sees numbers.
func extractBuildings(payload map[string]any) []models.Building {
	var out []models.Building

	parseRow := func(row any) {
		m, ok := row.(map[string]any)
		if !ok {
			return
		}
		btype := firstString(m, "buildingType", "typeName", "type", "name", "buildingName")
		if btype == "" {
			return
		}
		level, _ := firstInt64(m, "level", "lvl", "buildingLevel")
		effect := strings.TrimSpace(firstString(m, "effect", "description", "text", "bonus"))
		if effect != "" {
			levelStr := strconv.FormatInt(level, 10)
			effect = strings.ReplaceAll(effect, "[LEVEL]", levelStr)
			effect = strings.ReplaceAll(effect, "[level]", levelStr)
		}
		out = append(out, models.Building{
			BuildingType: strings.TrimSpace(btype),
			Level:        level,
			EffectText:   effect,
		})
	}

	for _, row := range extractList(payload, buildingListKeys) {
		parseRow(row)
	}
	if len(out) > 0 {
		return out
	}

	// Fallback: walk the whole response and try every object as a row.
	queue := []any{payload}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		switch node := cur.(type) {
		case map[string]any:
			parseRow(node)
			for _, v := range node {
				switch v.(type) {
				case map[string]any, []any:
					queue = append(queue, v)
				}
			}
		case []any:
			for _, item := range node {
				switch item.(type) {
				case map[string]any, []any:
					queue = append(queue, item)
				}
			}
		}
	}
	return out
}

// extractRankings pulls top-kingdom rows out of the rankings payload,
// probing the field-name variants seen across template versions.
func extractRankings(payload map[string]any, limit int) []models.KingdomRank {
	rows := extractList(payload, []string{"data", "kingdoms", "rankings", "items", "results"})

	out := make([]models.KingdomRank, 0, len(rows))
	for _, row := range rows {
		if limit > 0 && len(out) >= limit {
			break
		}
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		kid, ok := firstInt64(m, "kingdomId", "kingdom_id", "id")
		if !ok {
			continue
		}
		name := firstString(m, "kingdom", "name", "kingdomName")
		if name == "" {
			continue
		}

		rank := models.KingdomRank{KingdomID: kid, Kingdom: name}
		if v := firstString(m, "alliance", "allianceName", "ally"); v != "" {
			rank.Alliance = &v
		}
		if v, ok := firstInt64(m, "ranking", "rank", "position"); ok {
			rank.Ranking = &v
		}
		if v, ok := firstInt64(m, "networth", "nettWorth", "nw"); ok {
			rank.Networth = &v
		}
		out = append(out, rank)
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstInt64(m map[string]any, keys ...string) (int64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if n, isNum := asInt64(v); isNum {
				return n, true
			}
		}
	}
	return 0, false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

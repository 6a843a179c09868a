package kgclient

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return m
}

func TestUnwrapD(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantKey string
	}{
		{
			name:    "stringified envelope",
			raw:     `{"d": "{\"settlements\": []}"}`,
			wantKey: "settlements",
		},
		{
			name:    "object envelope",
			raw:     `{"d": {"kingdoms": []}}`,
			wantKey: "kingdoms",
		},
		{
			name:    "no envelope",
			raw:     `{"data": []}`,
			wantKey: "data",
		},
		{
			name:    "unparseable d left alone",
			raw:     `{"d": "not json"}`,
			wantKey: "d",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unwrapD(decode(t, tt.raw))
			if _, ok := got[tt.wantKey]; !ok {
				t.Errorf("unwrapD() missing key %q, got %v", tt.wantKey, got)
			}
		})
	}
}

func TestExtractSettlements(t *testing.T) {
	t.Run("named list key", func(t *testing.T) {
		payload := decode(t, `{"settlements": [
			{"id": 101, "name": "Riverholt"},
			{"settlementId": 102, "settlementName": "Stonegate"}
		]}`)
		got := extractSettlements(payload)
		if len(got) != 2 {
			t.Fatalf("got %d settlements, want 2", len(got))
		}
		if got[0].SettlementID != 101 || got[0].Name != "Riverholt" {
			t.Errorf("first settlement = %+v", got[0])
		}
		if got[1].SettlementID != 102 || got[1].Name != "Stonegate" {
			t.Errorf("second settlement = %+v", got[1])
		}
	})

	t.Run("nested under unknown key", func(t *testing.T) {
		payload := decode(t, `{"result": {"cities": [{"cityId": 7, "cityName": "Oakfen"}]}}`)
		got := extractSettlements(payload)
		if len(got) != 1 || got[0].SettlementID != 7 || got[0].Name != "Oakfen" {
			t.Fatalf("got %+v, want Oakfen id 7", got)
		}
	})

	t.Run("fallback scan by id key", func(t *testing.T) {
		payload := decode(t, `{"rows": [{"settlementId": 9}, {"unrelated": true}]}`)
		got := extractSettlements(payload)
		if len(got) != 1 {
			t.Fatalf("got %d settlements, want 1", len(got))
		}
		if got[0].Name != "Settlement 9" {
			t.Errorf("placeholder name = %q", got[0].Name)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		if got := extractSettlements(decode(t, `{"status": "ok"}`)); len(got) != 0 {
			t.Errorf("got %+v, want none", got)
		}
	})
}

func TestExtractBuildingsLevelSubstitution(t *testing.T) {
	payload := decode(t, `{"buildings": [
		{"buildingType": "Granary", "level": 4, "effect": "Increases food generation by [LEVEL]x0.5%"},
		{"typeName": "Housing", "lvl": 2, "description": "Adds 5% population"},
		{"noType": true}
	]}`)
	got := extractBuildings(payload)
	if len(got) != 2 {
		t.Fatalf("got %d buildings, want 2", len(got))
	}
	if got[0].EffectText != "Increases food generation by 4x0.5%" {
		t.Errorf("effect text = %q, placeholder not substituted", got[0].EffectText)
	}
	if got[1].BuildingType != "Housing" || got[1].Level != 2 {
		t.Errorf("second building = %+v", got[1])
	}
}

func TestExtractBuildingsFallbackWalk(t *testing.T) {
	payload := decode(t, `{"detail": {"buildingName": "Barracks", "buildingLevel": 3, "bonus": "Adds 10 soldiers per barracks"}}`)
	got := extractBuildings(payload)
	if len(got) != 1 {
		t.Fatalf("got %d buildings, want 1", len(got))
	}
	if got[0].BuildingType != "Barracks" || got[0].Level != 3 {
		t.Errorf("building = %+v", got[0])
	}
}

func TestExtractRankings(t *testing.T) {
	payload := decode(t, `{"data": [
		{"kingdomId": 3334, "kingdom": "Galileo", "alliance": "NORTH", "ranking": 1, "networth": 9000000},
		{"id": "77", "name": "Kepler", "rank": 2, "nw": 8000000},
		{"kingdom": "NoID"},
		{"kingdomId": 5}
	]}`)
	got := extractRankings(payload, 300)
	if len(got) != 2 {
		t.Fatalf("got %d rankings, want 2 (rows missing id or name skipped)", len(got))
	}

	first := got[0]
	if first.KingdomID != 3334 || first.Kingdom != "Galileo" {
		t.Errorf("first row = %+v", first)
	}
	if first.Alliance == nil || *first.Alliance != "NORTH" {
		t.Errorf("alliance = %v, want NORTH", first.Alliance)
	}
	if first.Networth == nil || *first.Networth != 9000000 {
		t.Errorf("networth = %v", first.Networth)
	}

	second := got[1]
	if second.KingdomID != 77 || second.Kingdom != "Kepler" {
		t.Errorf("second row = %+v (string id should parse)", second)
	}
	if second.Ranking == nil || *second.Ranking != 2 {
		t.Errorf("ranking = %v, want 2", second.Ranking)
	}
	if second.Alliance != nil {
		t.Errorf("alliance = %v, want nil", second.Alliance)
	}
}

func TestExtractRankingsLimit(t *testing.T) {
	payload := decode(t, `{"rankings": [
		{"kingdomId": 1, "kingdom": "A"},
		{"kingdomId": 2, "kingdom": "B"},
		{"kingdomId": 3, "kingdom": "C"}
	]}`)
	if got := extractRankings(payload, 2); len(got) != 2 {
		t.Errorf("got %d rankings, want limit of 2 applied", len(got))
	}
}

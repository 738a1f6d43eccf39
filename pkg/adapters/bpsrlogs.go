package adapters

import "strings"

// BPSRLogs normalizes combat-log payloads. It extracts fight and player
// identity, damage/mitigation figures and timestamp for fingerprinting.
type BPSRLogs struct{}

func (BPSRLogs) Source() string { return SourceBPSRLogs }

func (BPSRLogs) Normalize(payload map[string]any) map[string]any {
	meta := map[string]any{}

	if fight, ok := firstValue(payload, "fight_id", "fight"); ok {
		meta["fight_id"] = fight
	}
	if player, ok := firstValue(payload, "player_id", "player"); ok {
		meta["player_id"] = player
	}

	if damage, ok := firstValue(payload, "damage", "dmg"); ok {
		meta["damage"] = damage
	}
	if mitigation, ok := firstValue(payload, "mitigation", "mit"); ok {
		meta["mitigation"] = mitigation
	}

	// Combat logs carry ticks; tick wins over a plain timestamp.
	if ts, ok := firstValue(payload, "tick", "timestamp"); ok {
		meta["timestamp"] = ts
	}

	// Boss may arrive as a nested object or a flat name.
	var bossName string
	if boss, ok := payload["boss"].(map[string]any); ok {
		bossName, _ = boss["name"].(string)
	} else {
		bossName, _ = payload["boss_name"].(string)
	}
	if bossName != "" {
		meta["boss_name"] = bossName
	}

	if region, ok := firstString(payload, "region", "shard"); ok {
		meta["region"] = region
	}

	if category, ok := firstString(payload, "category", "type"); ok {
		switch strings.ToLower(category) {
		case "combat", "damage":
			meta["category"] = CategoryCombat
		case "heal", "healing":
			meta["category"] = CategoryHeal
		case "trade", "trade_center":
			meta["category"] = CategoryTrade
		default:
			meta["category"] = CategoryBossEvent
		}
	}

	return meta
}

package adapters

// knownCombatEvents are the bp_timer event types that map onto a category.
var knownCombatEvents = map[string]struct{}{
	"damage":      {},
	"heal":        {},
	"boss_spawn":  {},
	"boss_defeat": {},
}

// BPTimer normalizes boss/event-timer payloads. It extracts boss identity,
// HP percentage, timestamp and region so equivalent submissions fingerprint
// identically and reports stay queryable.
type BPTimer struct{}

func (BPTimer) Source() string { return SourceBPTimer }

func (BPTimer) Normalize(payload map[string]any) map[string]any {
	meta := map[string]any{}

	if name, ok := firstString(payload, "boss", "boss_name"); ok {
		meta["boss_name"] = name
	}
	if id, ok := firstValue(payload, "boss_id"); ok {
		meta["boss_id"] = id
	}

	if hp, ok := firstValue(payload, "hp_percent", "hp%"); ok {
		meta["hp_percent"] = hp
	}

	if ts, ok := firstValue(payload, "timestamp", "time"); ok {
		meta["timestamp"] = ts
	}

	if region, ok := firstString(payload, "region", "server"); ok {
		meta["region"] = region
	}

	event := lowerString(payload["event"])
	if _, known := knownCombatEvents[event]; known {
		switch event {
		case "heal":
			meta["category"] = CategoryHeal
		case "damage":
			meta["category"] = CategoryCombat
		default:
			meta["category"] = CategoryBossEvent
		}
	}

	return meta
}

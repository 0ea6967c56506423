package pipeline

// Theme describes one scan track: what to search for and whether the
// resulting content targets the free or the premium channel.
type Theme struct {
	Name          string
	TrackTier     string
	Keywords      []string
	LocalKeywords []string
}

// Track tiers. Free themes feed the public channel, premium themes feed
// paid deep dives.
const (
	TierFree    = "free"
	TierPremium = "premium"
)

// trackTiers maps known theme names to their tier, for operator overrides
// of themes that are not on the rotation for the current hour.
var trackTiers = map[string]string{
	"Cross-border E-commerce": TierFree,
	"AI Tools & Agent":        TierFree,
	"SaaS & Digital Trade":    TierPremium,
	"Crypto & Web3":           TierPremium,
	"Deep/Academic":           TierPremium,
	"General Tech":            TierFree,
}

// themeSchedule rotates scan themes through the day. Scan ticks between
// two scheduled hours reuse the nearest earlier entry.
var themeSchedule = map[int]Theme{
	2: {
		Name: "Deep/Academic", TrackTier: TierPremium,
		Keywords: []string{
			"AI commerce research paper", "cross-border trade technology study",
			"ecommerce AI academic", "global trade digital transformation research",
		},
		LocalKeywords: []string{"cross-border commerce report", "AI business whitepaper"},
	},
	6: {
		Name: "AI Tools & Agent", TrackTier: TierFree,
		Keywords: []string{
			"AI agent launch", "new AI tool product", "AI automation startup",
			"AI workflow tool release", "LLM application business",
		},
		LocalKeywords: []string{"AI tool release", "AI agent product"},
	},
	10: {
		Name: "Cross-border E-commerce", TrackTier: TierFree,
		Keywords: []string{
			"cross-border ecommerce trend", "Amazon seller update", "TikTok Shop global",
			"Temu Shein marketplace news", "Southeast Asia ecommerce",
		},
		LocalKeywords: []string{"cross-border ecommerce", "marketplace sellers going global"},
	},
	14: {
		Name: "SaaS & Digital Trade", TrackTier: TierPremium,
		Keywords: []string{
			"SaaS startup funding", "digital trade platform", "B2B SaaS product launch",
			"supply chain SaaS", "trade compliance software",
		},
		LocalKeywords: []string{"SaaS funding", "digital trade platform"},
	},
	18: {
		Name: "Crypto & Web3", TrackTier: TierPremium,
		Keywords: []string{
			"crypto regulation update", "Web3 commerce", "blockchain trade finance",
			"stablecoin cross-border payment", "crypto ETF news",
		},
		LocalKeywords: []string{"crypto regulation", "stablecoin payments"},
	},
	22: {
		Name: "General Tech", TrackTier: TierFree,
		Keywords: []string{
			"trending tech product", "Product Hunt top", "tech startup launch",
			"consumer tech breakthrough", "developer tool new",
		},
		LocalKeywords: []string{"tech product launch", "developer tools"},
	},
}

// ThemeForHour returns the theme scheduled at or nearest before the hour.
func ThemeForHour(hour int) Theme {
	best := -1
	for h := range themeSchedule {
		if h <= hour && h > best {
			best = h
		}
	}
	if best < 0 {
		// before the first slot of the day: wrap to the latest slot
		for h := range themeSchedule {
			if h > best {
				best = h
			}
		}
	}
	return themeSchedule[best]
}

// ThemeOverride builds a single-keyword theme from an operator-supplied
// name, resolving its tier when the name is a known track.
func ThemeOverride(name string) Theme {
	tier, ok := trackTiers[name]
	if !ok {
		tier = TierFree
	}
	return Theme{
		Name:          name,
		TrackTier:     tier,
		Keywords:      []string{name},
		LocalKeywords: []string{name},
	}
}

// AllKeywords merges both keyword tracks for fan-out searching.
func (t Theme) AllKeywords() []string {
	out := make([]string, 0, len(t.Keywords)+len(t.LocalKeywords))
	out = append(out, t.Keywords...)
	out = append(out, t.LocalKeywords...)
	return out
}

package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Utility
// ============================================================================

var HttpClient = &http.Client{
	Timeout: 10 * time.Second,
}

// Embed colors used across features.
const (
	ColorSuccess = 0x64FF64
	ColorFailure = 0xFF6464
	ColorNeutral = 0x64A0FF
	ColorPending = 0xFFA064
)

func intPtr(i int) *int {
	return &i
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func RandomIntRange(min, max int) int {
	if min > max {
		min, max = max, min
	}
	return rand.Intn(max-min+1) + min
}

func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "∞"
	}
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// StripWhitespace removes every whitespace rune. Used for challenge-phrase
// comparison where copy-pasted text picks up stray spacing.
func StripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ' ':
			return -1
		}
		return r
	}, s)
}

// --- Role checks ---

func memberHasRole(roleIDs []snowflake.ID, wanted string) bool {
	if wanted == "" {
		return false
	}
	wantedID, err := snowflake.Parse(wanted)
	if err != nil {
		return false
	}
	for _, rid := range roleIDs {
		if rid == wantedID {
			return true
		}
	}
	return false
}

func IsStaff(member *discord.ResolvedMember) bool {
	if member == nil || GlobalConfig == nil {
		return false
	}
	return memberHasRole(member.RoleIDs, GlobalConfig.StaffRoleID)
}

func IsQA(member *discord.ResolvedMember) bool {
	if member == nil || GlobalConfig == nil {
		return false
	}
	return memberHasRole(member.RoleIDs, GlobalConfig.QARoleID)
}

func IsOwner(userID snowflake.ID) bool {
	if GlobalConfig == nil {
		return false
	}
	for _, id := range GlobalConfig.OwnerIDs {
		if id == userID.String() {
			return true
		}
	}
	return false
}

// --- Embed helpers ---

func SimpleEmbed(description string, color int) discord.Embed {
	return discord.NewEmbedBuilder().
		SetDescription(description).
		SetColor(color).
		Build()
}

func TitledEmbed(title, description string, color int) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle(title).
		SetDescription(description).
		SetColor(color).
		Build()
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ============================================================================
// Configuration
// ============================================================================

const (
	MsgConfigMissingToken     = "missing DISCORD_TOKEN"
	MsgConfigInvalidGuildID   = "invalid GUILD_ID: must be a valid Snowflake"
	MsgCatalogReadFail        = "failed to read %s: %w"
	MsgCatalogParseFail       = "failed to parse catalog: %w"
	MsgCatalogWriteFail       = "failed to write %s: %w"
	MsgCatalogNoFishes        = "catalog defines no fish types"
	MsgCatalogBadFish         = "fish type %q: %s"
	MsgCatalogBadModifier     = "fish modifier %q: %s"
	MsgCatalogBadShopItem     = "shop item %q: %s"
	MsgCatalogUnknownModifier = "fish type %q references unknown modifier %q"
	MsgCatalogDupName         = "duplicate catalog name %q"

	// Environment Variables
	EnvDiscordToken   = "DISCORD_TOKEN"
	EnvSilent         = "SILENT"
	EnvOwnerIDs       = "OWNER_IDS"
	EnvGuildID        = "GUILD_ID"
	EnvStaffRoleID    = "STAFF_ROLE_ID"
	EnvQARoleID       = "QA_ROLE_ID"
	EnvMemberRoleID   = "MEMBER_ROLE_ID"
	EnvWelcomeChannel = "WELCOME_CHANNEL_ID"
	EnvLastfmKey      = "LASTFM_API_KEY"
	EnvLastfmSecret   = "LASTFM_SHARED_SECRET"

	CatalogFile = "Config.toml"
)

type Config struct {
	Token            string
	GuildID          string
	DatabasePath     string
	OwnerIDs         []string
	StaffRoleID      string
	QARoleID         string
	MemberRoleID     string
	WelcomeChannelID string
	LastfmKey        string
	LastfmSecret     string
	Silent           bool
}

var GlobalConfig *Config

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv(EnvDiscordToken)
	dbPath := filepath.Join(".", GetProjectName()+".db")

	silent, _ := strconv.ParseBool(os.Getenv(EnvSilent))

	ownerIDsStr := os.Getenv(EnvOwnerIDs)
	var ownerIDs []string
	if ownerIDsStr != "" {
		ownerIDs = strings.Split(ownerIDsStr, ",")
		for i := range ownerIDs {
			ownerIDs[i] = strings.TrimSpace(ownerIDs[i])
		}
	}

	cfg := &Config{
		Token:            token,
		GuildID:          os.Getenv(EnvGuildID),
		DatabasePath:     dbPath,
		OwnerIDs:         ownerIDs,
		StaffRoleID:      os.Getenv(EnvStaffRoleID),
		QARoleID:         os.Getenv(EnvQARoleID),
		MemberRoleID:     os.Getenv(EnvMemberRoleID),
		WelcomeChannelID: os.Getenv(EnvWelcomeChannel),
		LastfmKey:        os.Getenv(EnvLastfmKey),
		LastfmSecret:     os.Getenv(EnvLastfmSecret),
		Silent:           silent,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf(MsgConfigInvalidGuildID)
	}
	return nil
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "loopchan"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}

// ============================================================================
// Game Catalog (Config.toml)
// ============================================================================

type FishType struct {
	Name        string   `toml:"name"`
	Color       string   `toml:"color"`
	Description string   `toml:"description"`
	BaseValue   int      `toml:"base_value"`
	Chance      int      `toml:"chance"`
	Modifiers   []string `toml:"modifiers"`
	SizeMin     float64  `toml:"size_min"`
	SizeMax     float64  `toml:"size_max"`
}

type FishModifier struct {
	Name            string   `toml:"name"`
	Description     string   `toml:"description"`
	Chance          int      `toml:"chance"`
	SizeMultiplier  float64  `toml:"size_multiplier"`
	ValueMultiplier float64  `toml:"value_multiplier"`
	Incompatible    []string `toml:"incompatible"`
}

type ShopItem struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Icon        string `toml:"icon"`
	Description string `toml:"description"`
	Price       int    `toml:"price"`
}

type EconomyCatalog struct {
	Fishes    []FishType     `toml:"fishes"`
	Modifiers []FishModifier `toml:"modifiers"`
	ShopItems []ShopItem     `toml:"shop_items"`
}

type LevelingCatalog struct {
	MaxExpPerMessage    int     `toml:"max_exp_per_message"`
	ExpMultiplier       float64 `toml:"exp_multiplier"`
	DoubleExpOnWeekends bool    `toml:"double_exp_on_weekends"`
	MessageCooldownSecs int     `toml:"message_cooldown_secs"`
}

type WorkCatalog struct {
	CooldownSecs int `toml:"cooldown_secs"`
	PayoutMin    int `toml:"payout_min"`
	PayoutMax    int `toml:"payout_max"`
}

type FishingCatalog struct {
	CooldownSecs int `toml:"cooldown_secs"`
	Rounds       int `toml:"rounds"`
	CastWindowMs int `toml:"cast_window_ms"`
}

type LoopchanCatalog struct {
	Blacklist []string        `toml:"blacklist"`
	Economy   EconomyCatalog  `toml:"economy"`
	Leveling  LevelingCatalog `toml:"leveling"`
	Work      WorkCatalog     `toml:"work"`
	Fishing   FishingCatalog  `toml:"fishing"`
}

var (
	catalog   *LoopchanCatalog
	catalogMu sync.RWMutex
)

// ParseCatalog decodes and validates a catalog document. The whole document is
// rejected on the first malformed entry so bad game data never reaches handlers.
func ParseCatalog(data []byte) (*LoopchanCatalog, error) {
	var cat LoopchanCatalog
	if err := toml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf(MsgCatalogParseFail, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	cat.applyDefaults()
	return &cat, nil
}

func LoadCatalog(path string) (*LoopchanCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(MsgCatalogReadFail, path, err)
	}
	return ParseCatalog(data)
}

func SetCatalog(cat *LoopchanCatalog) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	catalog = cat
}

func GetCatalog() *LoopchanCatalog {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	return catalog
}

func (c *LoopchanCatalog) Validate() error {
	if len(c.Economy.Fishes) == 0 {
		return fmt.Errorf(MsgCatalogNoFishes)
	}

	modifierNames := make(map[string]bool, len(c.Economy.Modifiers))
	for _, m := range c.Economy.Modifiers {
		if m.Name == "" {
			return fmt.Errorf(MsgCatalogBadModifier, m.Name, "empty name")
		}
		if modifierNames[m.Name] {
			return fmt.Errorf(MsgCatalogDupName, m.Name)
		}
		modifierNames[m.Name] = true
		if m.Chance <= 0 {
			return fmt.Errorf(MsgCatalogBadModifier, m.Name, "chance must be positive")
		}
		if m.SizeMultiplier < 0 || m.ValueMultiplier < 0 {
			return fmt.Errorf(MsgCatalogBadModifier, m.Name, "multipliers must not be negative")
		}
	}

	fishNames := make(map[string]bool, len(c.Economy.Fishes))
	for _, f := range c.Economy.Fishes {
		if f.Name == "" {
			return fmt.Errorf(MsgCatalogBadFish, f.Name, "empty name")
		}
		if fishNames[f.Name] {
			return fmt.Errorf(MsgCatalogDupName, f.Name)
		}
		fishNames[f.Name] = true
		if f.Chance <= 0 {
			return fmt.Errorf(MsgCatalogBadFish, f.Name, "chance must be positive")
		}
		if f.BaseValue < 0 {
			return fmt.Errorf(MsgCatalogBadFish, f.Name, "base_value must not be negative")
		}
		if f.SizeMin <= 0 || f.SizeMax < f.SizeMin {
			return fmt.Errorf(MsgCatalogBadFish, f.Name, "size range must satisfy 0 < min <= max")
		}
		for _, modName := range f.Modifiers {
			if !modifierNames[modName] {
				return fmt.Errorf(MsgCatalogUnknownModifier, f.Name, modName)
			}
		}
	}

	shopIDs := make(map[string]bool, len(c.Economy.ShopItems))
	for _, s := range c.Economy.ShopItems {
		if s.ID == "" || s.Name == "" {
			return fmt.Errorf(MsgCatalogBadShopItem, s.Name, "empty id or name")
		}
		if shopIDs[s.ID] {
			return fmt.Errorf(MsgCatalogDupName, s.ID)
		}
		shopIDs[s.ID] = true
		if s.Price < 0 {
			return fmt.Errorf(MsgCatalogBadShopItem, s.Name, "price must not be negative")
		}
	}

	return nil
}

func (c *LoopchanCatalog) applyDefaults() {
	if c.Leveling.MaxExpPerMessage == 0 {
		c.Leveling.MaxExpPerMessage = 25
	}
	if c.Leveling.ExpMultiplier == 0 {
		c.Leveling.ExpMultiplier = 1.0
	}
	if c.Leveling.MessageCooldownSecs == 0 {
		c.Leveling.MessageCooldownSecs = 10
	}
	if c.Work.CooldownSecs == 0 {
		c.Work.CooldownSecs = 3600
	}
	if c.Work.PayoutMin == 0 {
		c.Work.PayoutMin = 50
	}
	if c.Work.PayoutMax < c.Work.PayoutMin {
		c.Work.PayoutMax = c.Work.PayoutMin * 5
	}
	if c.Fishing.CooldownSecs == 0 {
		c.Fishing.CooldownSecs = 120
	}
	if c.Fishing.Rounds == 0 {
		c.Fishing.Rounds = 3
	}
	if c.Fishing.CastWindowMs == 0 {
		c.Fishing.CastWindowMs = 1500
	}
	for i := range c.Economy.Modifiers {
		if c.Economy.Modifiers[i].SizeMultiplier == 0 {
			c.Economy.Modifiers[i].SizeMultiplier = 1.0
		}
		if c.Economy.Modifiers[i].ValueMultiplier == 0 {
			c.Economy.Modifiers[i].ValueMultiplier = 1.0
		}
	}
}

func (c *LoopchanCatalog) FishTypeByName(name string) (*FishType, bool) {
	for i := range c.Economy.Fishes {
		if c.Economy.Fishes[i].Name == name {
			return &c.Economy.Fishes[i], true
		}
	}
	return nil, false
}

func (c *LoopchanCatalog) ModifierByName(name string) (*FishModifier, bool) {
	for i := range c.Economy.Modifiers {
		if c.Economy.Modifiers[i].Name == name {
			return &c.Economy.Modifiers[i], true
		}
	}
	return nil, false
}

func (c *LoopchanCatalog) ShopItemByID(id string) (*ShopItem, bool) {
	for i := range c.Economy.ShopItems {
		if c.Economy.ShopItems[i].ID == id {
			return &c.Economy.ShopItems[i], true
		}
	}
	return nil, false
}

func (c *LoopchanCatalog) IsBlacklisted(discordID string) bool {
	for _, id := range c.Blacklist {
		if id == discordID {
			return true
		}
	}
	return false
}

// AppendBlacklist persists a new blacklist entry back to the catalog file and
// updates the in-memory catalog. Comments in the file are not preserved; the
// catalog file is treated as machine-managed state.
func AppendBlacklist(path string, discordID string) error {
	catalogMu.Lock()
	defer catalogMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf(MsgCatalogReadFail, path, err)
	}

	var cat LoopchanCatalog
	if err := toml.Unmarshal(data, &cat); err != nil {
		return fmt.Errorf(MsgCatalogParseFail, err)
	}

	for _, id := range cat.Blacklist {
		if id == discordID {
			return nil
		}
	}
	cat.Blacklist = append(cat.Blacklist, discordID)

	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cat); err != nil {
		return fmt.Errorf(MsgCatalogWriteFail, path, err)
	}
	if err := os.WriteFile(path, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf(MsgCatalogWriteFail, path, err)
	}

	// Swap in a fresh catalog value; readers holding the old pointer keep
	// iterating an untouched slice.
	if catalog != nil {
		next := *catalog
		next.Blacklist = append(append([]string(nil), catalog.Blacklist...), discordID)
		catalog = &next
	}
	return nil
}

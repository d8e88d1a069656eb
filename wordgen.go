package main

import (
	"math/rand"
	"strings"
)

// ============================================================================
// Wordgen
// ============================================================================

// Challenge vocabulary. Parkour/community themed so generated phrases are
// recognizable as ours when pasted into a Roblox profile.
var genWords = []string{
	"data",
	"lose",
	"perpetuity",
	"hudzell",
	"lunari",
	"frost",
	"prokitek",
	"parkour",
	"loop",
	"parkour the loop",
	"community",
	"reborn",
	"ranked",
	"movement",
	"competitive",
	"time trial",
	"otimads",
	"kapitan wai",
	"datalose",
	"kremble",
	"ash",
	"joe",
	"quilical",
	"alver",
	"kiwii",
	"nightplay",
	"dorkk",
	"wallrun",
	"wallclimb",
	"speedvault",
	"dash",
	"grappler",
	"wingsuit",
	"quickturn",
	"genesis",
	"elo",
	"bloxy cola",
	"slide",
	"route",
	"gap",
	"silly",
	"infinite map",
	"adrenaline",
	"combo",
	"flow",
	"leaderboard",
	"gearless",
	"spawn",
	"zipline",
	"vertex",
	"velocity",
	"gear",
	"party",
	"prop",
	"landing",
	"bronze",
	"silver",
	"gold",
	"platinum",
	"diamond",
	"master",
	"elite",
	"points",
	"skins",
	"hwlq",
	"vecetyp",
	"long jump",
	"coil",
	"springboard",
	"cut dash",
	"stim reset",
	"stim hop",
	"paraglider",
	"skydive",
	"dropbug",
	"downshift",
	"downslam",
}

// ChallengeWordCount is how many words make up a verification challenge.
const ChallengeWordCount = 11

func RandomGenWord() string {
	return genWords[rand.Intn(len(genWords))]
}

func GenerateWords(amount int) []string {
	words := make([]string, 0, amount)
	for i := 0; i < amount; i++ {
		words = append(words, RandomGenWord())
	}
	return words
}

// GenerateChallenge returns the challenge phrase shown to the user and the
// whitespace-stripped form used for comparison against a profile description.
func GenerateChallenge() (display string, compact string) {
	words := GenerateWords(ChallengeWordCount)
	display = strings.Join(words, "\n")
	compact = StripWhitespace(display)
	return display, compact
}

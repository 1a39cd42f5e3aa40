// internal/models/query_types.go
package models

import (
	"regexp"
	"strings"
)

// IntentCategory is a coarse reading of the question used to pick a narration template.
// It never influences query scoping.
type IntentCategory string

const (
	IntentIncome    IntentCategory = "income"
	IntentDealCount IntentCategory = "deal_count"
	IntentRanking   IntentCategory = "ranking"
	IntentPeriod    IntentCategory = "period"
	IntentAverage   IntentCategory = "average"
	IntentHeadcount IntentCategory = "headcount"
	IntentGeneric   IntentCategory = "generic"
)

type intentRule struct {
	intent IntentCategory
	match  func(q string) bool
}

// Most specific phrasing first: "best month for commission" is a period question,
// and "how many deals did my agents close" counts deals, not agents.
var intentRules = []intentRule{
	{IntentPeriod, func(q string) bool {
		return strings.Contains(q, "month") && containsAny(q, "best", "worst", "lowest", "highest", "top", "slowest")
	}},
	{IntentAverage, func(q string) bool { return containsAny(q, "average", "avg", "mean") }},
	{IntentDealCount, func(q string) bool {
		return asksCount(q) && containsAny(q, "deal", "transaction", "sale", "closing")
	}},
	{IntentHeadcount, func(q string) bool {
		return asksCount(q) && strings.Contains(q, "agent")
	}},
	{IntentRanking, func(q string) bool {
		return strings.HasPrefix(q, "who") || strings.Contains(q, "which agent")
	}},
	{IntentIncome, func(q string) bool {
		return containsAny(q, "income", "money", "commission", "earn", "made", "make", "how much", "revenue")
	}},
	{IntentRanking, func(q string) bool { return containsAny(q, "who", "top", "best agent", "ranking") }},
}

// ClassifyIntent is pure and deterministic.
func ClassifyIntent(question string) IntentCategory {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, r := range intentRules {
		if r.match(q) {
			return r.intent
		}
	}
	return IntentGeneric
}

// "account" and "discount" are not counts.
var countWord = regexp.MustCompile(`\bcount(s|ed)?\b`)

func asksCount(q string) bool {
	return containsAny(q, "how many", "number of") || countWord.MatchString(q)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// QuerySource says which path produced the executed query.
type QuerySource string

const (
	SourceCache       QuerySource = "cache"
	SourceSynthesized QuerySource = "synthesized"
)

// SynthesizedQuery is a per-request query with its positional parameters.
type SynthesizedQuery struct {
	Text   string        `json:"text"`
	Params []interface{} `json:"-"`
}

// Package narrator turns query results into a sentence for the caller.
package narrator

import (
	"fmt"
	"strings"

	"brokerage-insights/internal/models"
	"brokerage-insights/internal/pipeline/rolepolicy"
)

const NoDataSentence = "I couldn't find any data for your question. " +
	"You might want to try asking about a different time period or check if you have any transactions recorded."

const maxRanked = 5

// request is what every template sees.
type request struct {
	question string
	results  models.ResultSet
	identity models.Identity
	role     models.Role
	intent   models.IntentCategory
}

func (r request) greet() string {
	if name := r.identity.GreetingName(); name != "" {
		return "Hi " + name + "!"
	}
	return "Hi there!"
}

func (r request) team() bool {
	return r.role == models.RoleBroker || r.role == models.RoleManagingBroker
}

// template renders when its intent matches and the results have the right shape.
type template struct {
	name   string
	intent models.IntentCategory
	render func(r request) (string, bool)
}

// Fixed priority order; the first template that renders wins.
var templates = []template{
	{name: "income", intent: models.IntentIncome, render: renderIncome},
	{name: "deal_count", intent: models.IntentDealCount, render: renderDealCount},
	{name: "headcount", intent: models.IntentHeadcount, render: renderHeadcount},
	{name: "ranking", intent: models.IntentRanking, render: renderRanking},
	{name: "period", intent: models.IntentPeriod, render: renderPeriod},
	{name: "average", intent: models.IntentAverage, render: renderAverage},
}

// Narrate is deterministic and side-effect free.
func Narrate(question string, results models.ResultSet, identity models.Identity, intent models.IntentCategory) string {
	if results.IsEmpty() {
		return NoDataSentence
	}

	r := request{
		question: strings.ToLower(question),
		results:  results,
		identity: identity,
		role:     rolepolicy.EffectiveRole(identity.Role),
		intent:   intent,
	}
	for _, t := range templates {
		if t.intent != intent {
			continue
		}
		if text, ok := t.render(r); ok {
			return text
		}
	}
	return renderFallback(r)
}

// ==========================
// Templates
// ==========================

var incomeColumns = []string{"total_income", "total", "net_commission", "amount"}

func renderIncome(r request) (string, bool) {
	if r.results.Len() != 1 {
		return "", false
	}
	row := r.results.First()
	v, ok := firstNumeric(row, func(col string) bool { return in(col, incomeColumns) })
	if !ok {
		v, ok = firstNumeric(row, func(col string) bool { return containsAny(col, "income", "commission") })
	}
	if !ok {
		return "", false
	}

	subject := "Your total income this year is"
	switch {
	case r.role == models.RoleAdmin:
		subject = "Total system income this year is"
	case r.team():
		subject = "Your team's total income this year is"
	}
	if v == 0 {
		return fmt.Sprintf("%s %s $0. You might want to check if all your transactions have been processed.", r.greet(), subject), true
	}
	return fmt.Sprintf("%s %s %s. Great work!", r.greet(), subject, formatCurrency(v)), true
}

func renderDealCount(r request) (string, bool) {
	n, ok := singleCount(r.results)
	if !ok {
		return "", false
	}
	switch {
	case r.role == models.RoleAdmin:
		return fmt.Sprintf("%s There %s %s %s closed in the system this year.",
			r.greet(), plural(n, "has been", "have been"), formatCount(n), plural(n, "deal", "deals")), true
	case r.team():
		if n == 0 {
			return fmt.Sprintf("%s Your team hasn't closed any deals this year yet. Keep pushing!", r.greet()), true
		}
		return fmt.Sprintf("%s Your team has closed %s %s this year. Excellent work!",
			r.greet(), formatCount(n), plural(n, "deal", "deals")), true
	}
	if n == 0 {
		return fmt.Sprintf("%s You haven't closed any deals this year yet. Keep pushing!", r.greet()), true
	}
	return fmt.Sprintf("%s You've closed %s %s this year. Excellent work!",
		r.greet(), formatCount(n), plural(n, "deal", "deals")), true
}

func renderHeadcount(r request) (string, bool) {
	n, ok := singleCount(r.results)
	if !ok {
		return "", false
	}
	agents := plural(n, "agent", "agents")
	if r.role == models.RoleAdmin {
		return fmt.Sprintf("%s There %s %s active %s in the system.",
			r.greet(), plural(n, "is", "are"), formatCount(n), agents), true
	}
	return fmt.Sprintf("%s You have %s active %s in your team.", r.greet(), formatCount(n), agents), true
}

var nameColumns = []string{"agent_name", "name", "full_name", "recipient_name"}

func renderRanking(r request) (string, bool) {
	first, ok := rowName(r.results.First())
	if !ok {
		return "", false
	}
	if strings.Contains(r.question, "top") && r.results.Len() > 1 {
		var names []string
		for i, row := range r.results.Rows {
			if i == maxRanked {
				break
			}
			if n, ok := rowName(row); ok {
				names = append(names, n)
			}
		}
		return fmt.Sprintf("%s Your top agents are: %s.", r.greet(), strings.Join(names, ", ")), true
	}
	return fmt.Sprintf("%s The answer is %s.", r.greet(), first), true
}

func renderPeriod(r request) (string, bool) {
	if r.results.Len() != 1 {
		return "", false
	}
	row := r.results.First()
	month, ok := row.Get("month")
	if !ok || month == nil {
		return "", false
	}
	v, ok := firstNumeric(row, func(col string) bool { return !strings.EqualFold(col, "month") })
	if !ok {
		return "", false
	}

	label := monthLabel(month)
	if containsAny(r.question, "worst", "lowest", "slowest") {
		return fmt.Sprintf("%s Your lowest month was %s with %s in commissions.", r.greet(), label, formatCurrency(v)), true
	}
	return fmt.Sprintf("%s Your best month was %s with %s in commissions. Outstanding!", r.greet(), label, formatCurrency(v)), true
}

func renderAverage(r request) (string, bool) {
	if r.results.Len() != 1 {
		return "", false
	}
	v, ok := firstNumeric(r.results.First(), func(col string) bool { return containsAny(col, "average", "avg") })
	if !ok || v <= 0 {
		return "", false
	}
	return fmt.Sprintf("%s Your average deal size is %s.", r.greet(), formatCurrency(v)), true
}

// renderFallback reports the first non-zero number of a single row, else the row count.
func renderFallback(r request) string {
	if r.results.Len() == 1 {
		for _, f := range r.results.First() {
			v, integral, ok := number(f.Value)
			if !ok || v == 0 {
				continue
			}
			if integral {
				return fmt.Sprintf("%s The result is %s.", r.greet(), formatCount(int64(v)))
			}
			return fmt.Sprintf("%s The result is %s.", r.greet(), formatCurrency(v))
		}
	}
	n := int64(r.results.Len())
	return fmt.Sprintf("%s I found %s %s for your question.", r.greet(), formatCount(n), plural(n, "result", "results"))
}

// ==========================
// Column helpers
// ==========================

func singleCount(rs models.ResultSet) (int64, bool) {
	if rs.Len() != 1 {
		return 0, false
	}
	for _, f := range rs.First() {
		if !containsAny(strings.ToLower(f.Name), "count", "number") {
			continue
		}
		if n, ok := count(f.Value); ok {
			return n, true
		}
	}
	return 0, false
}

func firstNumeric(row models.ResultRow, accept func(col string) bool) (float64, bool) {
	for _, f := range row {
		if !accept(strings.ToLower(f.Name)) {
			continue
		}
		if v, _, ok := number(f.Value); ok {
			return v, true
		}
	}
	return 0, false
}

func rowName(row models.ResultRow) (string, bool) {
	for _, col := range nameColumns {
		if v, ok := row.Get(col); ok {
			if s := strings.TrimSpace(fmt.Sprint(nonNil(v))); s != "" {
				return s, true
			}
		}
	}
	if first, ok := row.Get("F_NAME"); ok && first != nil {
		name := strings.TrimSpace(fmt.Sprint(first))
		if last, ok := row.Get("L_NAME"); ok && last != nil {
			name = strings.TrimSpace(name + " " + fmt.Sprint(last))
		}
		if name != "" {
			return name, true
		}
	}
	return "", false
}

func nonNil(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	return v
}

func in(s string, set []string) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

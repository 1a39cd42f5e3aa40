package querycache

import (
	"strings"

	"brokerage-insights/internal/models"
	"brokerage-insights/internal/pipeline/rolepolicy"
)

const scopeSlot = "{{scope}}"

const (
	thisYear       = "EXTRACT(YEAR FROM Wire_Date) = EXTRACT(YEAR FROM CURRENT_DATE)"
	realDeal       = "(BuyerID > 0 OR ListingID > 0)"
	commissionRows = "FROM payroll_Queue_Archive WHERE " + scopeSlot + thisYear + " AND " + realDeal
)

var (
	incomeSQL = "SELECT COALESCE(SUM(NET_COMMISSION), 0) AS total_income " + commissionRows + ";"

	dealCountSQL = "SELECT COUNT(*) AS deal_count " + commissionRows + ";"

	worstMonthSQL = "SELECT TO_CHAR(DATE_TRUNC('month', Wire_Date), 'FMMonth YYYY') AS month, " +
		"SUM(NET_COMMISSION) AS total " + commissionRows +
		" GROUP BY DATE_TRUNC('month', Wire_Date) HAVING SUM(NET_COMMISSION) > 0 ORDER BY total ASC LIMIT 1;"

	bestMonthSQL = "SELECT TO_CHAR(DATE_TRUNC('month', Wire_Date), 'FMMonth YYYY') AS month, " +
		"SUM(NET_COMMISSION) AS total " + commissionRows +
		" GROUP BY DATE_TRUNC('month', Wire_Date) HAVING SUM(NET_COMMISSION) > 0 ORDER BY total DESC LIMIT 1;"

	averageDealSQL = "SELECT COALESCE(AVG(SalesPrice), 0) AS average_deal_size " + commissionRows + " AND SalesPrice > 0;"

	teamHeadcountSQL = "SELECT COUNT(DISTINCT u.USER_ID) AS agent_count FROM TBL_USER_CREATE u " +
		"INNER JOIN TBL_FEES_MASTER f ON u.FEE_ID = f.FEE_ID " +
		"WHERE f.EQUITY_DIVISION_25_ID = $1 AND u.USTATUS = 1 AND u.STATUS_ID NOT IN (2, 11) AND u.UTYPE_ID = 14;"

	systemHeadcountSQL = "SELECT COUNT(DISTINCT USER_ID) AS agent_count FROM TBL_USER_CREATE WHERE USTATUS = 1 AND UTYPE_ID = 14;"
)

var (
	agentOnly = []models.Role{models.RoleAgent}
	teamRoles = []models.Role{models.RoleBroker, models.RoleManagingBroker}
	adminOnly = []models.Role{models.RoleAdmin}
)

// scoped expands one query shape into its agent, team and system variants.
func scoped(name string, intent models.IntentCategory, triggers []string, sql string) []Template {
	return []Template{
		{
			Name: name + "_agent", Intent: intent, Triggers: triggers, Roles: agentOnly,
			SQL:   strings.Replace(sql, scopeSlot, rolepolicy.ColumnUserID+" = $1 AND ", 1),
			Scope: rolepolicy.ScopeIdentityID,
		},
		{
			Name: name + "_team", Intent: intent, Triggers: triggers, Roles: teamRoles,
			SQL:   strings.Replace(sql, scopeSlot, rolepolicy.ColumnDivision+" = $1 AND ", 1),
			Scope: rolepolicy.ScopeTeamID,
		},
		{
			Name: name + "_system", Intent: intent, Triggers: triggers, Roles: adminOnly,
			SQL:   strings.Replace(sql, scopeSlot, "", 1),
			Scope: rolepolicy.ScopeNone,
		},
	}
}

func builtins() []Template {
	var out []Template
	out = append(out, scoped("total_income", models.IntentIncome,
		[]string{"total income", "how much money", "total commission", "income this year"}, incomeSQL)...)
	out = append(out, scoped("deal_count", models.IntentDealCount,
		[]string{"how many deals", "deal count", "number of deals"}, dealCountSQL)...)
	out = append(out, scoped("worst_month", models.IntentPeriod,
		[]string{"worst month"}, worstMonthSQL)...)
	out = append(out, scoped("best_month", models.IntentPeriod,
		[]string{"best month"}, bestMonthSQL)...)
	out = append(out, scoped("average_deal", models.IntentAverage,
		[]string{"average deal", "average sale"}, averageDealSQL)...)

	out = append(out,
		Template{
			Name: "agent_count_team", Intent: models.IntentHeadcount, Roles: teamRoles,
			Triggers: []string{"how many agents"},
			SQL:      teamHeadcountSQL, Scope: rolepolicy.ScopeTeamID,
		},
		Template{
			Name: "team_income_broad", Intent: models.IntentIncome, Roles: teamRoles,
			Triggers: []string{"how much"},
			SQL:      strings.Replace(incomeSQL, scopeSlot, rolepolicy.ColumnDivision+" = $1 AND ", 1),
			Scope:    rolepolicy.ScopeTeamID,
		},
		Template{
			Name: "agent_count_system", Intent: models.IntentHeadcount, Roles: adminOnly,
			Triggers: []string{"how many agents", "agent count"},
			SQL:      systemHeadcountSQL, Scope: rolepolicy.ScopeNone,
		},
		Template{
			Name: "system_income_broad", Intent: models.IntentIncome, Roles: adminOnly,
			Triggers: []string{"system"},
			SQL:      strings.Replace(incomeSQL, scopeSlot, "", 1),
			Scope:    rolepolicy.ScopeNone,
		},
	)
	return out
}

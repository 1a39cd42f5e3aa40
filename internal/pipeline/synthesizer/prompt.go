package synthesizer

import (
	"fmt"
	"strings"

	"brokerage-insights/internal/models"
	"brokerage-insights/internal/pipeline/rolepolicy"
)

const schemaDescription = `Database Schema:
- payroll_Queue_Archive: Main commission tracking table
  - USER_ID: Agent identifier (int)
  - Wire_Date: Payment date (timestamp)
  - NET_COMMISSION: Final commission paid to agent (numeric)
  - AMOUNT_1099_AM: Gross commission before deductions (numeric)
  - SalesPrice: Property sale price (numeric)
  - BuyerID: ID if agent represented buyer (int, >0 means valid)
  - ListingID: ID if agent had listing (int, >0 means valid)
  - CHECK_MEMO: Property address (varchar)
  - EQUITY_DIVISION_25_ID: Broker ID who gets 25% division (int)

- TBL_USER_CREATE: User accounts table
  - USER_ID: Primary key (int)
  - USTATUS: Active status (1=active, 0=inactive)
  - UTYPE_ID: User type (1=admin, 12=managingbroker, 14=agent, 15=broker, 16=designated broker)

- TBL_USER_DETAILS: User profile information
  - USER_ID: Links to TBL_USER_CREATE (int)
  - F_NAME: First name (varchar)
  - L_NAME: Last name (varchar)
  - JOINED_DT: Join date (timestamp)

- TBL_FEES_MASTER: Fee structure table
  - FEE_ID: Primary key (int)
  - EQUITY_DIVISION_25_ID: Broker who gets 25% (int)`

// buildPrompt assembles the generation instruction. The scope rule is always
// rendered from the effective role so an unknown role is described as an agent.
func buildPrompt(assistantName, question string, identity models.Identity, rule rolepolicy.ScopeRule) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("You are %s, an expert PostgreSQL query generator for a real estate brokerage system.", assistantName))
	parts = append(parts, fmt.Sprintf("\nGenerate a SQL query for this question: %q", question))
	parts = append(parts, "\n"+schemaDescription)

	parts = append(parts, "\nCurrent Context:")
	parts = append(parts, fmt.Sprintf("- User Role: %s", rule.Role))
	parts = append(parts, fmt.Sprintf("- User ID: %s", identity.ID))
	if !rule.Unrestricted {
		parts = append(parts, fmt.Sprintf("- Required restriction: %s", rule.Predicate()))
	}
	parts = append(parts, "- Only return actual transactions where BuyerID > 0 OR ListingID > 0")

	parts = append(parts, "\nInstructions:")
	rules := []string{
		"Use $1 as the only positional parameter; never inline identifiers",
		"For agents: ALWAYS filter by payroll_Queue_Archive.USER_ID = $1. This rule is non-negotiable",
		"For brokers and managing brokers: ALWAYS filter by payroll_Queue_Archive.EQUITY_DIVISION_25_ID = $1 to see their team data. This rule is non-negotiable",
		"For admins: query across all users with no $1 parameter",
		"Only include real transactions: WHERE (BuyerID > 0 OR ListingID > 0)",
		"Return ONLY the SQL query, no explanations",
		"Use appropriate date filtering for \"this year\", \"last month\", etc. with EXTRACT and CURRENT_DATE",
		"For \"who\" questions, JOIN with TBL_USER_DETAILS for names",
	}
	for i, r := range rules {
		parts = append(parts, fmt.Sprintf("%d. %s", i+1, r))
	}

	parts = append(parts, "\nSQL Query:")
	return strings.Join(parts, "\n")
}

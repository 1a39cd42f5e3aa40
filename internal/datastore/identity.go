package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"brokerage-insights/internal/models"
)

const identityColumns = `
	uc.USER_ID                AS user_id,
	COALESCE(ud.F_NAME, '')   AS f_name,
	COALESCE(ud.L_NAME, '')   AS l_name,
	COALESCE(uc.UTYPE_ID, 0)  AS utype_id,
	uc.USTATUS                AS ustatus`

const identityByIDQuery = `
SELECT` + identityColumns + `
FROM TBL_USER_CREATE uc
LEFT JOIN TBL_USER_DETAILS ud ON ud.USER_ID = uc.USER_ID
WHERE uc.USER_ID = $1
  AND uc.USTATUS = 1`

// Exact full-name matches rank first, then full-name substrings, then first or last name.
const identityByNameQuery = `
SELECT` + identityColumns + `
FROM TBL_USER_CREATE uc
INNER JOIN TBL_USER_DETAILS ud ON ud.USER_ID = uc.USER_ID
WHERE uc.USTATUS = 1
  AND (
    LOWER(ud.F_NAME || ' ' || ud.L_NAME) LIKE $1
    OR LOWER(ud.F_NAME) LIKE $1
    OR LOWER(ud.L_NAME) LIKE $1
  )
ORDER BY
  CASE
    WHEN LOWER(ud.F_NAME || ' ' || ud.L_NAME) = $2 THEN 1
    WHEN LOWER(ud.F_NAME || ' ' || ud.L_NAME) LIKE $1 THEN 2
    ELSE 3
  END,
  uc.USER_ID
LIMIT 1`

type identityRow struct {
	UserID    int64  `db:"user_id"`
	FirstName string `db:"f_name"`
	LastName  string `db:"l_name"`
	UserType  int    `db:"utype_id"`
	Status    int    `db:"ustatus"`
}

var titleCaser = cases.Title(language.English)

func (r identityRow) toIdentity() *models.Identity {
	first := titleCaser.String(strings.TrimSpace(r.FirstName))
	last := titleCaser.String(strings.TrimSpace(r.LastName))
	status := models.StatusInactive
	if r.Status == 1 {
		status = models.StatusActive
	}
	return &models.Identity{
		ID:          strconv.FormatInt(r.UserID, 10),
		DisplayName: strings.TrimSpace(first + " " + last),
		FirstName:   first,
		LastName:    last,
		Role:        models.RoleFromUserType(r.UserType),
		Status:      status,
	}
}

// FetchIdentityByID returns the active user with the given id, or nil.
func (s *PostgresStore) FetchIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	id = strings.TrimSpace(id)
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, nil
	}

	var row identityRow
	if err := s.db.GetContext(ctx, &row, identityByIDQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: by id: %v", ErrLookupFailed, err)
	}
	return row.toIdentity(), nil
}

// FetchIdentityByFuzzyName returns the best active match for name, or nil.
func (s *PostgresStore) FetchIdentityByFuzzyName(ctx context.Context, name string) (*models.Identity, error) {
	name = strings.ToLower(strings.Join(strings.Fields(name), " "))
	if name == "" {
		return nil, nil
	}

	var row identityRow
	err := s.db.GetContext(ctx, &row, identityByNameQuery, "%"+name+"%", name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: by name: %v", ErrLookupFailed, err)
	}
	return row.toIdentity(), nil
}

package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerage-insights/internal/callerid"
	apperrors "brokerage-insights/internal/common/errors"
	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/models"
)

// ==========================
// Test Helpers
// ==========================

type fakeStore struct {
	byID    map[string]*models.Identity
	byName  map[string]*models.Identity
	idCalls []string
	nameErr error
	names   []string
}

func (f *fakeStore) FetchIdentityByID(_ context.Context, id string) (*models.Identity, error) {
	f.idCalls = append(f.idCalls, id)
	return f.byID[id], nil
}

func (f *fakeStore) FetchIdentityByFuzzyName(_ context.Context, name string) (*models.Identity, error) {
	f.names = append(f.names, name)
	if f.nameErr != nil {
		return nil, f.nameErr
	}
	return f.byName[name], nil
}

func agent(id, name string) *models.Identity {
	return &models.Identity{ID: id, DisplayName: name, Role: models.RoleAgent, Status: models.StatusActive}
}

func newTestResolver(t *testing.T, store *fakeStore, table map[string]string) *Resolver {
	return New(callerid.NewStaticDirectory(table), store, "Jen", logger.NewTestLogger(t))
}

// ==========================
// Caller ID
// ==========================

func TestResolveByCallerID(t *testing.T) {
	store := &fakeStore{byID: map[string]*models.Identity{"4821": agent("4821", "Sam Lee")}}
	r := newTestResolver(t, store, map[string]string{"+1 555 010 2000": "4821", "5550103000": "999"})
	ctx := context.Background()

	id, err := r.ResolveByCallerID(ctx, "555-010-2000")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "4821", id.ID)

	id, err = r.ResolveByCallerID(ctx, "5550103000")
	require.NoError(t, err)
	assert.Nil(t, id, "mapped id without an active record")

	id, err = r.ResolveByCallerID(ctx, "5559999999")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = r.ResolveByCallerID(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestResolveByCallerID_InactiveIgnored(t *testing.T) {
	inactive := agent("4821", "Sam Lee")
	inactive.Status = models.StatusInactive
	store := &fakeStore{byID: map[string]*models.Identity{"4821": inactive}}
	r := newTestResolver(t, store, map[string]string{"5550102000": "4821"})

	id, err := r.ResolveByCallerID(context.Background(), "5550102000")
	require.NoError(t, err)
	assert.Nil(t, id)
}

// ==========================
// Utterance
// ==========================

func TestResolveByUtterance_IDBeforeName(t *testing.T) {
	store := &fakeStore{
		byID:   map[string]*models.Identity{"99010": agent("99010", "Jane Doe")},
		byName: map[string]*models.Identity{"jane doe": agent("1", "Someone Else")},
	}
	r := newTestResolver(t, store, nil)

	id, err := r.ResolveByUtterance(context.Background(), "Hi, this is Jane Doe, agent ID 99010")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "99010", id.ID)
	assert.Empty(t, store.names, "name text must be ignored when an id matched")
}

func TestResolveByUtterance_Patterns(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		wantID    string
		wantName  string
	}{
		{"my id is", "my id is 4821", "4821", ""},
		{"agent number", "Agent number 4821 here", "4821", ""},
		{"i am agent", "I am agent 4821", "4821", ""},
		{"my name is", "My name is Jane Doe", "", "jane doe"},
		{"this is with filler", "This is Jane Doe calling", "", "jane doe"},
		{"cut at conjunction", "my name is jane doe and i want my income", "", "jane doe"},
		{"greeting", "Hello Jane Doe", "", "jane doe"},
		{"greeting strips assistant", "hey jen jane doe here", "", "jane doe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				byID:   map[string]*models.Identity{"4821": agent("4821", "Sam Lee")},
				byName: map[string]*models.Identity{"jane doe": agent("77", "Jane Doe")},
			}
			r := newTestResolver(t, store, nil)

			id, err := r.ResolveByUtterance(context.Background(), tt.utterance)
			require.NoError(t, err)
			require.NotNil(t, id)
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, id.ID)
			}
			if tt.wantName != "" {
				assert.Contains(t, store.names, tt.wantName)
				assert.Equal(t, "77", id.ID)
			}
		})
	}
}

func TestResolveByUtterance_Unresolvable(t *testing.T) {
	tests := []string{
		"I'd like some help please",
		"I'm Jane", // single token
		"hi jen",   // nothing left after stripping
		"I want to see the sushi bar numbers",
		"",
	}
	for _, utterance := range tests {
		t.Run(utterance, func(t *testing.T) {
			store := &fakeStore{}
			r := newTestResolver(t, store, nil)
			id, err := r.ResolveByUtterance(context.Background(), utterance)
			assert.NoError(t, err)
			assert.Nil(t, id)
		})
	}
}

func TestResolveByUtterance_MissedIDFallsThroughToName(t *testing.T) {
	store := &fakeStore{byName: map[string]*models.Identity{"jane doe": agent("77", "Jane Doe")}}
	r := newTestResolver(t, store, nil)

	id, err := r.ResolveByUtterance(context.Background(), "my id is 123, my name is Jane Doe")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "77", id.ID)
	require.NotEmpty(t, store.idCalls)
	assert.Equal(t, "123", store.idCalls[0])
	assert.Equal(t, []string{"jane doe"}, store.names)
}

func TestResolveByUtterance_LookupErrorSurfacesOnlyWhenUnresolved(t *testing.T) {
	store := &fakeStore{nameErr: errors.New("db down")}
	r := newTestResolver(t, store, nil)

	id, err := r.ResolveByUtterance(context.Background(), "my name is Jane Doe")
	assert.Nil(t, id)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIdentityLookupFailed))
	assert.ErrorIs(t, err, store.nameErr)
}

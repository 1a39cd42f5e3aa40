package resolver

import (
	"context"
	"regexp"
	"strings"

	"brokerage-insights/internal/callerid"
	apperrors "brokerage-insights/internal/common/errors"
	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/common/metrics"
	"brokerage-insights/internal/models"
)

// IdentityStore is the lookup half of the data store.
// Both methods return nil, nil when no active record matches.
type IdentityStore interface {
	FetchIdentityByID(ctx context.Context, id string) (*models.Identity, error)
	FetchIdentityByFuzzyName(ctx context.Context, name string) (*models.Identity, error)
}

type lookupKind int

const (
	byID lookupKind = iota
	byName
)

type extractor struct {
	name    string
	kind    lookupKind
	pattern *regexp.Regexp
	// greeting extractors drop the assistant's name and require len > 3
	greeting bool
}

var extractors = []extractor{
	{name: "id:my-agent-id", kind: byID, pattern: regexp.MustCompile(`\bmy agent id is (\d+)`)},
	{name: "id:agent-id", kind: byID, pattern: regexp.MustCompile(`\bagent id[:#]?\s*(\d+)`)},
	{name: "id:id-is", kind: byID, pattern: regexp.MustCompile(`\bid is (\d+)`)},
	{name: "id:i-am-agent", kind: byID, pattern: regexp.MustCompile(`\bi am agent (\d+)`)},
	{name: "id:this-is-agent", kind: byID, pattern: regexp.MustCompile(`\bthis is agent (\d+)`)},
	{name: "id:agent-number", kind: byID, pattern: regexp.MustCompile(`\bagent number (\d+)`)},
	{name: "id:my-id", kind: byID, pattern: regexp.MustCompile(`\bmy id is (\d+)`)},

	{name: "name:my-name-is", kind: byName, pattern: regexp.MustCompile(`\bmy name is ([a-z\s]+)`)},
	{name: "name:i-am", kind: byName, pattern: regexp.MustCompile(`\bi am ([a-z\s]+)`)},
	{name: "name:this-is", kind: byName, pattern: regexp.MustCompile(`\bthis is ([a-z\s]+)`)},
	{name: "name:i-m", kind: byName, pattern: regexp.MustCompile(`\bi'm ([a-z\s]+)`)},

	{name: "greeting", kind: byName, greeting: true,
		pattern: regexp.MustCompile(`\b(?:hi|hello|hey)\b[,!.]?\s+(?:this\s+is\s+|i'm\s+|i\s+am\s+)?([a-z\s]+)`)},
}

var fillerWords = map[string]bool{"calling": true, "speaking": true, "here": true}

// A name never continues past these.
var stopWords = map[string]bool{
	"and": true, "but": true, "with": true, "about": true, "from": true, "my": true,
	"i": true, "to": true, "for": true, "can": true, "could": true, "would": true,
	"need": true, "want": true, "please": true, "agent": true, "id": true,
}

// Resolver turns a caller id or a spoken introduction into an Identity.
type Resolver struct {
	directory     callerid.Directory
	store         IdentityStore
	assistantName string
	logger        logger.Logger
}

func New(directory callerid.Directory, store IdentityStore, assistantName string, log logger.Logger) *Resolver {
	return &Resolver{
		directory:     directory,
		store:         store,
		assistantName: strings.ToLower(strings.TrimSpace(assistantName)),
		logger:        log.Named("resolver"),
	}
}

// ResolveByCallerID consults only the caller-ID table. A miss returns nil, nil.
func (r *Resolver) ResolveByCallerID(ctx context.Context, callerID string) (*models.Identity, error) {
	if r.directory == nil || strings.TrimSpace(callerID) == "" {
		return nil, nil
	}
	userID, ok, err := r.directory.LookupUserID(ctx, callerID)
	if err != nil {
		metrics.IdentityResolutions.WithLabelValues("caller_id", "error").Inc()
		return nil, apperrors.NewIdentityLookupFailedError("caller_id", err)
	}
	if !ok {
		metrics.IdentityResolutions.WithLabelValues("caller_id", "miss").Inc()
		return nil, nil
	}

	identity, err := r.store.FetchIdentityByID(ctx, userID)
	if err != nil {
		metrics.IdentityResolutions.WithLabelValues("caller_id", "error").Inc()
		return nil, apperrors.NewIdentityLookupFailedError("caller_id", err)
	}
	if !usable(identity) {
		metrics.IdentityResolutions.WithLabelValues("caller_id", "miss").Inc()
		return nil, nil
	}
	metrics.IdentityResolutions.WithLabelValues("caller_id", "hit").Inc()
	return identity, nil
}

// ResolveByUtterance tries id patterns, then name patterns, then greetings.
// A match whose lookup finds no active record moves on to the next pattern.
// The error is only returned when nothing resolved and a lookup failed.
func (r *Resolver) ResolveByUtterance(ctx context.Context, text string) (*models.Identity, error) {
	normalized := normalize(text)
	if normalized == "" {
		return nil, nil
	}

	var firstErr error
	for _, ex := range extractors {
		m := ex.pattern.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}

		var (
			identity *models.Identity
			err      error
		)
		switch ex.kind {
		case byID:
			identity, err = r.store.FetchIdentityByID(ctx, m[1])
		case byName:
			name, ok := r.cleanName(m[1], ex.greeting)
			if !ok {
				continue
			}
			identity, err = r.store.FetchIdentityByFuzzyName(ctx, name)
		}

		if err != nil {
			r.logger.Warn("Identity lookup failed", map[string]interface{}{
				"extractor": ex.name,
				"error":     err.Error(),
			})
			if firstErr == nil {
				firstErr = apperrors.NewIdentityLookupFailedError(ex.name, err)
			}
			continue
		}
		if usable(identity) {
			metrics.IdentityResolutions.WithLabelValues("utterance", "hit").Inc()
			r.logger.Debug("Identity resolved from utterance", map[string]interface{}{
				"extractor": ex.name,
				"userId":    identity.ID,
			})
			return identity, nil
		}
	}

	metrics.IdentityResolutions.WithLabelValues("utterance", "miss").Inc()
	return nil, firstErr
}

func (r *Resolver) cleanName(raw string, greeting bool) (string, bool) {
	var kept []string
	for _, tok := range strings.Fields(raw) {
		if fillerWords[tok] {
			continue
		}
		if greeting && (tok == r.assistantName || tok == "and") {
			continue
		}
		if stopWords[tok] {
			break
		}
		kept = append(kept, tok)
	}

	if len(kept) < 2 {
		return "", false
	}
	name := strings.Join(kept, " ")
	if greeting && len(name) <= 3 {
		return "", false
	}
	return name, true
}

func normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.ReplaceAll(t, "’", "'")
}

func usable(identity *models.Identity) bool {
	return identity != nil && identity.ID != "" && identity.IsActive()
}

package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"time"

	"quiz-night-service/internal/domain"
)

const tokenBytes = 24

// Teams tracks registered team names, their tokens and when each token was last seen.
type Teams struct {
	records *Records
	now     func() time.Time
}

func NewTeams(records *Records, now func() time.Time) *Teams {
	if now == nil {
		now = time.Now
	}
	return &Teams{records: records, now: now}
}

// Register adds name to the team list. Names are trimmed and compared exactly.
func (t *Teams) Register(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ErrBadPayload
	}
	err := update(ctx, t.records, domain.RecordTeams, domain.DefaultTeams, func(list *[]string) error {
		for _, existing := range *list {
			if existing == name {
				return domain.ErrTeamExists
			}
		}
		*list = append(*list, name)
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// List returns team names in registration order.
func (t *Teams) List(ctx context.Context) ([]string, error) {
	list, err := read(ctx, t.records, domain.RecordTeams, domain.DefaultTeams)
	if list == nil {
		list = domain.DefaultTeams()
	}
	return list, err
}

// Token returns the token bound to name, minting one on first use. Either way the
// token's lastSeen is refreshed.
func (t *Teams) Token(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ErrBadPayload
	}
	var token string
	err := t.updateTokens(ctx, func(idx *domain.TokenIndex) error {
		now := domain.Millis(t.now())
		token = idx.ByName[name]
		if token == "" {
			minted, err := newToken()
			if err != nil {
				return err
			}
			token = minted
			idx.ByName[name] = token
		}
		if info := idx.Tokens[token]; info != nil {
			info.LastSeen = now
		} else {
			idx.Tokens[token] = &domain.TokenInfo{TeamName: name, LastSeen: now}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Rejoin resolves token to its team name and refreshes lastSeen.
func (t *Teams) Rejoin(ctx context.Context, token string) (string, error) {
	var name string
	err := t.touch(ctx, token, func(info *domain.TokenInfo) {
		name = info.TeamName
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// Heartbeat refreshes lastSeen and, when pageHidden is given, the visibility flag.
func (t *Teams) Heartbeat(ctx context.Context, token string, pageHidden *bool) error {
	return t.touch(ctx, token, func(info *domain.TokenInfo) {
		if pageHidden != nil {
			info.PageHidden = *pageHidden
		}
	})
}

func (t *Teams) touch(ctx context.Context, token string, fn func(*domain.TokenInfo)) error {
	if token == "" {
		return domain.ErrNotFound
	}
	return t.updateTokens(ctx, func(idx *domain.TokenIndex) error {
		info := idx.Tokens[token]
		if info == nil {
			return domain.ErrNotFound
		}
		info.LastSeen = domain.Millis(t.now())
		fn(info)
		return nil
	})
}

// Active lists every known token with how long ago it was seen, sorted by team name.
func (t *Teams) Active(ctx context.Context) ([]domain.Presence, error) {
	idx, err := read(ctx, t.records, domain.RecordTokens, domain.NewTokenIndex)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		idx = domain.NewTokenIndex()
	}
	now := domain.Millis(t.now())
	window := domain.PresenceWindow.Milliseconds()

	out := make([]domain.Presence, 0, len(idx.Tokens))
	for _, info := range idx.Tokens {
		if info == nil {
			continue
		}
		diff := now - info.LastSeen
		out = append(out, domain.Presence{
			TeamName:   info.TeamName,
			LastSeen:   info.LastSeen,
			AgoSeconds: int64(math.Round(float64(diff) / 1000)),
			Active:     diff < window,
			PageHidden: info.PageHidden,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TeamName != out[j].TeamName {
			return out[i].TeamName < out[j].TeamName
		}
		return out[i].LastSeen > out[j].LastSeen
	})
	return out, nil
}

func (t *Teams) updateTokens(ctx context.Context, fn func(*domain.TokenIndex) error) error {
	return update(ctx, t.records, domain.RecordTokens, domain.NewTokenIndex, func(idx **domain.TokenIndex) error {
		if *idx == nil {
			*idx = domain.NewTokenIndex()
		}
		if (*idx).Tokens == nil {
			(*idx).Tokens = make(map[string]*domain.TokenInfo)
		}
		if (*idx).ByName == nil {
			(*idx).ByName = make(map[string]string)
		}
		return fn(*idx)
	})
}

func (t *Teams) removeFromList(ctx context.Context, name string) error {
	return update(ctx, t.records, domain.RecordTeams, domain.DefaultTeams, func(list *[]string) error {
		kept := make([]string, 0, len(*list))
		for _, existing := range *list {
			if existing != name {
				kept = append(kept, existing)
			}
		}
		*list = kept
		return nil
	})
}

// removeToken unbinds name's token from both indices.
func (t *Teams) removeToken(ctx context.Context, name string) error {
	return t.updateTokens(ctx, func(idx *domain.TokenIndex) error {
		if token, ok := idx.ByName[name]; ok {
			delete(idx.ByName, name)
			delete(idx.Tokens, token)
		}
		for token, info := range idx.Tokens {
			if info != nil && info.TeamName == name {
				delete(idx.Tokens, token)
			}
		}
		return nil
	})
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Package identity resolves session tokens to users.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"
)

//go:generate mockgen -source=identity.go -destination=mock_identity.go -package=identity

// Provider resolves an opaque session token to the user it was issued for
type Provider interface {
	ResolveSession(ctx context.Context, token string) (models.User, error)
}

// OwnsAuction reports whether user is the seller of auction
func OwnsAuction(user models.User, auction models.Auction) bool {
	return user.UserID != "" && user.UserID == auction.SellerID
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// MemoryProvider keeps sessions in process. Used for development and tests.
type MemoryProvider struct {
	mu       sync.RWMutex
	sessions map[string]models.User // key: token
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{sessions: make(map[string]models.User)}
}

// AddSession registers token for user
func (p *MemoryProvider) AddSession(token string, user models.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[token] = user
}

func (p *MemoryProvider) ResolveSession(_ context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, fmt.Errorf("resolve session: %w - missing token", biddingerrors.ErrIdentityRequired)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	user, ok := p.sessions[token]
	if !ok {
		return models.User{}, fmt.Errorf("resolve session: %w - unknown token", biddingerrors.ErrIdentityRequired)
	}
	return user, nil
}

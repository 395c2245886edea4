package identity

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
)

// Provider picks the client credential for a request URL.
type Provider struct {
	Registry *Registry
	Keystore Keystore
	Logger   *slog.Logger
}

// ForURL returns the identity with the longest configured URL prefix of
// rawurl. The boolean is false when no identity applies.
func (p *Provider) ForURL(ctx context.Context, rawurl string) (Identity, bool, error) {
	all, err := p.Registry.All(ctx)
	if err != nil {
		return Identity{}, false, err
	}
	var best Identity
	bestLen := -1
	for _, ident := range all {
		for _, prefix := range ident.URLs {
			if prefix != "" && strings.HasPrefix(rawurl, prefix) && len(prefix) > bestLen {
				best, bestLen = ident, len(prefix)
			}
		}
	}
	return best, bestLen >= 0, nil
}

// CredentialForURL returns the certificate to present for rawurl, or nil
// when no identity is configured for it.
func (p *Provider) CredentialForURL(ctx context.Context, rawurl string) (*tls.Certificate, error) {
	ident, ok, err := p.ForURL(ctx, rawurl)
	if err != nil || !ok {
		return nil, err
	}
	cert, err := p.Keystore.Certificate(ident.Key)
	if err != nil {
		return nil, fmt.Errorf("identity %d: %w", ident.ID, err)
	}
	p.logger().Debug("using identity", "id", ident.ID, "key", ident.Key, "url", rawurl)
	return cert, nil
}

// Delete removes identities and, when the keystore supports it, their key pairs.
func (p *Provider) Delete(ctx context.Context, identities ...Identity) error {
	ids := make([]uint64, 0, len(identities))
	for _, ident := range identities {
		if d, ok := p.Keystore.(interface{ Delete(string) error }); ok && ident.Key != "" {
			if err := d.Delete(ident.Key); err != nil {
				return err
			}
			p.logger().Info("deleted client certificate", "key", ident.Key)
		}
		ids = append(ids, ident.ID)
	}
	return p.Registry.Delete(ctx, ids...)
}

func (p *Provider) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

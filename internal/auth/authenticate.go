package auth

import (
	"context"
	"errors"
)

// Authenticate validates a CPF/password pair and returns the resolved
// identity summary. Every failure mode collapses to ErrUnauthorized:
// unknown CPF, wrong password and deactivated account are deliberately
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, cpf, password string) (IdentitySummary, error) {
	cpf = normalizeCPF(cpf)
	if cpf == "" || password == "" {
		return IdentitySummary{}, ErrUnauthorized
	}
	ident, err := s.store.FindIdentityByCPF(ctx, cpf)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return IdentitySummary{}, ErrUnauthorized
		}
		return IdentitySummary{}, err
	}
	if !ident.Active || ident.Deleted() {
		return IdentitySummary{}, ErrUnauthorized
	}
	if err := VerifyPassword(ident.PasswordHash, password); err != nil {
		return IdentitySummary{}, ErrUnauthorized
	}
	summary, err := s.Summarize(ctx, ident.ID)
	if err != nil {
		return IdentitySummary{}, err
	}
	return summary, nil
}

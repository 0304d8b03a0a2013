package clients

import (
	"context"

	"github.com/guustavogomes/emprestimosdiario/internal/auth"
)

// Store describes the persistence operations for customer records.
// Listings exclude soft-deleted rows; point lookups return them.
type Store interface {
	Create(ctx context.Context, client *Client) error
	Get(ctx context.Context, id string) (Client, error)
	FindByCPF(ctx context.Context, cpf string) (Client, error)
	List(ctx context.Context, filter Filter) ([]Client, error)
	Update(ctx context.Context, id string, upd Update) (Client, error)
	SoftDelete(ctx context.Context, id, actorID string) error
	Count(ctx context.Context) (int, error)
}

// RegistrationStore creates a customer record together with its
// self-service login identity. Implementations must make the pair
// atomic: a client without a login, or a login without a client, is a
// support ticket waiting to happen.
type RegistrationStore interface {
	Register(ctx context.Context, client *Client, identity *auth.Identity) error
}

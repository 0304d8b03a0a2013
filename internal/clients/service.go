package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/auth"
)

// Service wraps the store with validation and CPF uniqueness handling.
type Service struct {
	store Store
	reg   RegistrationStore
}

// NewService constructs the client service. reg may be nil when
// self-service registration is disabled.
func NewService(store Store, reg RegistrationStore) (*Service, error) {
	if store == nil {
		return nil, errors.New("clients: store is required")
	}
	return &Service{store: store, reg: reg}, nil
}

// NewClient is the input for creating a customer record.
type NewClient struct {
	Name            string
	Phone           string
	CPF             string
	BirthDate       *time.Time
	PostalCode      string
	Street          string
	Number          string
	District        string
	City            string
	PixKey          string
	EmergencyName1  string
	EmergencyPhone1 string
	EmergencyName2  string
	EmergencyPhone2 string
	Label           string
}

// Create registers a customer record.
func (s *Service) Create(ctx context.Context, in NewClient) (Client, error) {
	client, err := buildClient(in)
	if err != nil {
		return Client{}, err
	}
	if err := s.store.Create(ctx, &client); err != nil {
		if errors.Is(err, ErrConflict) {
			return Client{}, fmt.Errorf("%w: CPF já cadastrado", ErrConflict)
		}
		return Client{}, err
	}
	return client, nil
}

// Get loads one customer record.
func (s *Service) Get(ctx context.Context, id string) (Client, error) {
	return s.store.Get(ctx, id)
}

// List returns live customer records, newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Client, error) {
	filter.Label = strings.TrimSpace(filter.Label)
	filter.Search = strings.TrimSpace(filter.Search)
	return s.store.List(ctx, filter)
}

// Update applies a partial mutation, re-checking CPF uniqueness when the
// CPF changes.
func (s *Service) Update(ctx context.Context, id string, upd Update) (Client, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Client{}, fmt.Errorf("%w: client id is required", ErrInvalidInput)
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return Client{}, fmt.Errorf("%w: nome is required", ErrInvalidInput)
	}
	if upd.CPF != nil {
		cpf := normalizeCPF(*upd.CPF)
		if cpf == "" {
			return Client{}, fmt.Errorf("%w: cpf is required", ErrInvalidInput)
		}
		upd.CPF = &cpf
	}
	client, err := s.store.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Client{}, fmt.Errorf("%w: CPF já cadastrado para outro cliente", ErrConflict)
		}
		return Client{}, err
	}
	return client, nil
}

// Count reports how many live customer records exist.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Delete soft-deletes a customer record.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidInput)
	}
	return s.store.SoftDelete(ctx, id, actorID)
}

// Registration is the public self-service sign-up input.
type Registration struct {
	NewClient
	Password string
}

// Register creates the customer record and its CLIENT-role login in one
// transaction. The login CPF is the client CPF.
func (s *Service) Register(ctx context.Context, in Registration) (Client, error) {
	if s.reg == nil {
		return Client{}, errors.New("clients: self-service registration is not configured")
	}
	client, err := buildClient(in.NewClient)
	if err != nil {
		return Client{}, err
	}
	if in.Password == "" {
		return Client{}, fmt.Errorf("%w: senha é obrigatória", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Client{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	identity := auth.Identity{
		Name:         client.Name,
		CPF:          client.CPF,
		PasswordHash: hash,
		Role:         auth.RoleClient,
		Lifecycle:    auth.Lifecycle{Active: true},
	}
	if err := s.reg.Register(ctx, &client, &identity); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, auth.ErrConflict) {
			return Client{}, fmt.Errorf("%w: CPF já cadastrado", ErrConflict)
		}
		return Client{}, err
	}
	return client, nil
}

func buildClient(in NewClient) (Client, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.CPF = normalizeCPF(in.CPF)
	if in.Name == "" || in.Phone == "" || in.CPF == "" {
		return Client{}, fmt.Errorf("%w: nome, telefone e CPF são obrigatórios", ErrInvalidInput)
	}
	return Client{
		Name:            in.Name,
		Phone:           in.Phone,
		CPF:             in.CPF,
		BirthDate:       in.BirthDate,
		PostalCode:      strings.TrimSpace(in.PostalCode),
		Street:          strings.TrimSpace(in.Street),
		Number:          strings.TrimSpace(in.Number),
		District:        strings.TrimSpace(in.District),
		City:            strings.TrimSpace(in.City),
		PixKey:          strings.TrimSpace(in.PixKey),
		EmergencyName1:  strings.TrimSpace(in.EmergencyName1),
		EmergencyPhone1: strings.TrimSpace(in.EmergencyPhone1),
		EmergencyName2:  strings.TrimSpace(in.EmergencyName2),
		EmergencyPhone2: strings.TrimSpace(in.EmergencyPhone2),
		Label:           strings.TrimSpace(in.Label),
		Lifecycle:       auth.Lifecycle{Active: true},
	}, nil
}

func normalizeCPF(cpf string) string {
	cpf = strings.TrimSpace(cpf)
	cpf = strings.ReplaceAll(cpf, ".", "")
	cpf = strings.ReplaceAll(cpf, "-", "")
	return cpf
}

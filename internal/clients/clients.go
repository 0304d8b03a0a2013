// Package clients manages the business-customer records loans are
// written against.
package clients

import (
	"errors"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/auth"
)

var (
	ErrNotFound     = errors.New("clients: not found")
	ErrConflict     = errors.New("clients: conflict")
	ErrInvalidInput = errors.New("clients: invalid input")
)

// Client is one customer record. CPF is the natural key; the emergency
// contacts are who collections calls when the phone goes silent.
type Client struct {
	ID              string     `json:"id"`
	Name            string     `json:"nome"`
	Phone           string     `json:"telefone"`
	CPF             string     `json:"cpf"`
	BirthDate       *time.Time `json:"data_nascimento,omitempty"`
	PostalCode      string     `json:"cep,omitempty"`
	Street          string     `json:"endereco,omitempty"`
	Number          string     `json:"numero,omitempty"`
	District        string     `json:"bairro,omitempty"`
	City            string     `json:"cidade,omitempty"`
	PixKey          string     `json:"chave_pix,omitempty"`
	EmergencyName1  string     `json:"nome_emergencia1,omitempty"`
	EmergencyPhone1 string     `json:"telefone_emergencia1,omitempty"`
	EmergencyName2  string     `json:"nome_emergencia2,omitempty"`
	EmergencyPhone2 string     `json:"telefone_emergencia2,omitempty"`
	Label           string     `json:"etiqueta,omitempty"`
	auth.Lifecycle
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter narrows a listing. Label is an exact match; Search is matched
// case-insensitively against name, CPF and phone.
type Filter struct {
	Label  string
	Search string
}

// Update is a partial mutation; nil fields stay untouched.
type Update struct {
	Name            *string
	Phone           *string
	CPF             *string
	BirthDate       *time.Time
	PostalCode      *string
	Street          *string
	Number          *string
	District        *string
	City            *string
	PixKey          *string
	EmergencyName1  *string
	EmergencyPhone1 *string
	EmergencyName2  *string
	EmergencyPhone2 *string
	Label           *string
}

// Package postgres implements the payment service repositories on pgx.
// Phone numbers and SMS bodies pass through a FieldCipher on the way in and
// out, so callers only ever see plaintext.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/mfsreconcile/golang_services/internal/platform/database"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, db database.DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply payment schema: %w", err)
	}
	return nil
}

// FieldCipher encrypts individual column values. Decrypt must tolerate
// plaintext and foreign ciphertext by returning the input unchanged.
type FieldCipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(blob string) string
}

func encryptAll(c FieldCipher, values ...*string) error {
	for _, v := range values {
		if *v == "" {
			continue
		}
		enc, err := c.Encrypt(*v)
		if err != nil {
			return fmt.Errorf("encrypt column: %w", err)
		}
		*v = enc
	}
	return nil
}

func decryptAll(c FieldCipher, values ...*string) {
	for _, v := range values {
		if *v != "" {
			*v = c.Decrypt(*v)
		}
	}
}

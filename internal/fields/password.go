package fields

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/graphql-go/graphql"
	"golang.org/x/crypto/bcrypt"

	"cms-graphql/internal/schema"
)

const (
	bcryptCost       = 10
	defaultMinLength = 8
)

// PasswordConfig configures a password field.
type PasswordConfig struct {
	Config
	// MinLength defaults to 8. Use a negative value to disable the check.
	MinLength  int
	IsRequired bool
}

type bcryptSecret struct{}

func (bcryptSecret) GenerateHash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (bcryptSecret) Compare(plain, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Password stores a bcrypt hash. Reads only reveal whether a value is set.
func Password(cfg PasswordConfig) schema.FieldFunc {
	return func(fc schema.FieldContext) (*schema.Field, error) {
		minLength := cfg.MinLength
		if minLength == 0 {
			minLength = defaultMinLength
		}
		secret := bcryptSecret{}
		hash := func(_ context.Context, value any) (any, error) {
			plain, ok := value.(string)
			if !ok {
				return value, nil
			}
			return secret.GenerateHash(plain)
		}
		stateType := fc.Filters.Shared("PasswordState", func() graphql.Type {
			return graphql.NewObject(graphql.ObjectConfig{
				Name: "PasswordState",
				Fields: graphql.Fields{
					"isSet": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
				},
			})
		})

		f := &schema.Field{
			Type:    "password",
			DBField: schema.Scalar(schema.ScalarString, schema.ModeOptional),
			Input: schema.FieldInputs{
				Create: &schema.FieldInput{Arg: staticArg(graphql.String), Resolve: hash},
				Update: &schema.FieldInput{Arg: staticArg(graphql.String), Resolve: hash},
			},
			Output: &schema.FieldOutput{
				Type: staticOutput(stateType),
				Resolve: func(_ context.Context, p schema.OutputParams) (any, error) {
					return map[string]any{"isSet": p.Value != nil}, nil
				},
			},
			IsRequired: cfg.IsRequired,
			Secret:     secret,
			AdminMeta: func(schema.AdminMetaRoot) (map[string]any, error) {
				return map[string]any{"minLength": minLength}, nil
			},
		}
		cfg.apply(f)
		if minLength > 0 {
			f.Hooks = withValidation(f.Hooks, func(_ context.Context, args schema.HookArgs, addError schema.AddValidationError) error {
				plain, ok := args.OriginalInput[fc.FieldKey].(string)
				if ok && utf8.RuneCountInString(plain) < minLength {
					addError(fmt.Sprintf("%s must be at least %d characters long.", fieldLabel(fc, cfg.UI), minLength))
				}
				return nil
			})
		}
		return f, nil
	}
}

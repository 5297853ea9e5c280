package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/prescrimed/tenant-access-service/internal/adapters/middleware"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode reads a JSON body into dst and runs struct validation on it.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", domain.ErrInvalidInput)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+" "+fe.Tag())
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// requestContext returns what the auth pipeline stored for this request.
func requestContext(r *http.Request) (domain.Principal, domain.Scope, error) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return domain.Principal{}, domain.Scope{}, domain.ErrUnauthenticated
	}
	scope, ok := middleware.ScopeFrom(r.Context())
	if !ok {
		return domain.Principal{}, domain.Scope{}, domain.ErrUnauthenticated
	}
	return p, scope, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

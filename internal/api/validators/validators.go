package validators

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/orchestrator"
	appErr "github.com/learnhub/engine/pkg/errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// New returns the shared request validator. Field errors are reported
// under their json names.
func New() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("noderefs", validNodeRefs)
		_ = v.RegisterValidation("jobenv", func(fl validator.FieldLevel) bool {
			return !orchestrator.ReservedEnv(fl.Field().String())
		})
		instance = v
	})
	return instance
}

// Struct validates s and converts failures into an invalid AppError whose
// meta maps each offending field to the rule it broke.
func Struct(s any) error {
	err := New().Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return appErr.Wrap(err, appErr.CodeInvalid, "request validation failed")
	}
	e := appErr.New(appErr.CodeInvalid, "request validation failed")
	for _, fe := range ves {
		e.WithMeta(fieldPath(fe), fe.Tag())
	}
	return e
}

// fieldPath drops the struct name prefix from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// validNodeRefs accepts a reference map whose keys are registered
// collections and whose values are uuids.
func validNodeRefs(fl validator.FieldLevel) bool {
	refs, ok := fl.Field().Interface().(models.NodeRefs)
	if !ok {
		return false
	}
	for collection, ids := range refs {
		if !models.IsCollection(collection) {
			return false
		}
		for _, id := range ids {
			if _, err := uuid.Parse(id); err != nil {
				return false
			}
		}
	}
	return true
}

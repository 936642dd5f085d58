package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"washly/internal/apierror"
	"washly/internal/middleware"
	"washly/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

const (
	idempotencyHeader = "Idempotency-Key"
	// maxIdempotencyKey matches the varchar(100) columns on tickets and payments.
	maxIdempotencyKey = 100
)

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindValidation, "JSON invalido: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

func runValidation(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, apierror.New(apierror.KindValidation, err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError writes the envelope for err with the status of its kind and
// attaches err so ErrorHandler logs the rejection.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(apierror.HTTPStatus(apierror.KindOf(err)), apierror.FromError(err))
}

// pathID parses the :name path parameter. Writes a 400 on failure.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindValidation, "ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// idempotencyKey returns the trimmed Idempotency-Key header, nil when absent.
// An oversized key is never shortened: two keys sharing a prefix would
// collide. Writes a 422 and returns false instead.
func idempotencyKey(c *gin.Context) (*string, bool) {
	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	if key == "" {
		return nil, true
	}
	if len(key) > maxIdempotencyKey {
		respondError(c, apierror.Validation("%s admite como maximo %d caracteres", idempotencyHeader, maxIdempotencyKey))
		return nil, false
	}
	return &key, true
}

func actorID(c *gin.Context) uuid.UUID { return middleware.ActorID(c) }

// actor carries the id and role from the access token into the services.
func actor(c *gin.Context) service.Actor {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{ID: claims.Actor(), Role: claims.Rol}
}

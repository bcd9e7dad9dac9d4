package handler

import (
	"errors"
	"net/http"
	"reflect"

	"restopos/internal/apierror"
	"restopos/internal/middleware"
	"restopos/internal/service"

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

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(service.CodeInvalidInput, "invalid JSON: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

// bindOptional is bindAndValidate for endpoints whose body may be omitted.
func bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return runValidation(c, req)
	}
	return bindAndValidate(c, req)
}

// bindQuery binds and validates query string parameters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(service.CodeInvalidInput, "invalid query: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

func runValidation(c *gin.Context, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, apierror.New(service.CodeInvalidInput, err.Error()))
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
	return false
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(e *service.Error) int {
	if e.Code == service.CodeKitchenUnavailable {
		return http.StatusServiceUnavailable
	}
	switch e.Kind {
	case service.KindInvalid:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindPrecondition, service.KindConflict:
		return http.StatusConflict
	case service.KindRecoverable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders domain errors with their reason code. Anything else is
// handed to middleware.ErrorHandler, which logs it and answers 500.
func writeError(c *gin.Context, err error) {
	if e, ok := service.AsError(err); ok {
		c.JSON(statusFor(e), apierror.New(e.Code, e.Message))
		return
	}
	_ = c.Error(err)
}

// actor builds the service identity from the JWT claims. JWTAuth has
// already rejected tokens whose ids do not parse.
func actor(c *gin.Context) service.Actor {
	claims := middleware.GetClaims(c)
	return service.Actor{
		CashierID:    uuid.MustParse(claims.CashierID),
		BranchID:     uuid.MustParse(claims.BranchID),
		RestaurantID: uuid.MustParse(claims.RestaurantID),
	}
}

// uuidParam parses a path parameter, writing 400 when it is not a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(service.CodeInvalidInput, name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
